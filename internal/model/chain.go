package model

import "github.com/google/uuid"

// ChainSet binds a set number to its set within a chained exam.
type ChainSet struct {
	SetNumber int       `json:"set_number"`
	SetID     uuid.UUID `json:"set_id"`
}

// ChainDefinition is the backend truth about a multi-set exam.
type ChainDefinition struct {
	ExamID      uuid.UUID  `json:"exam_id"`
	Sets        []ChainSet `json:"sets"`
	ChainLength int        `json:"chain_length"`
}

// ChainPosition is the rebuilt navigation context of a chained set.
type ChainPosition struct {
	ExamID           uuid.UUID         `json:"exam_id"`
	SetID            uuid.UUID         `json:"set_id"`
	SetNumber        int               `json:"set_number"`
	ChainLength      int               `json:"chain_length"`
	SetNumberToSetID map[int]uuid.UUID `json:"set_number_to_set_id"`
}

// NextSetID returns the set following the current one, if any.
func (p *ChainPosition) NextSetID() (uuid.UUID, bool) {
	id, ok := p.SetNumberToSetID[p.SetNumber+1]
	return id, ok
}
