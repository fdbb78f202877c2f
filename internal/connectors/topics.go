package connectors

const (
	TopicConnStatus      = "conn.status"
	TopicVariables       = "variables"
	TopicCustomVariables = "variables.custom"
	TopicFrameIn         = "frame.in"
	TopicFrameOut        = "frame.out"
)
