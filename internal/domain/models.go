package domain

import "time"

// VariableChange is one recorded value of a published variable.
type VariableChange struct {
	At       time.Time `json:"at"`
	Host     string    `json:"host"`
	Variable string    `json:"variable"`
	Value    string    `json:"value"`
}
