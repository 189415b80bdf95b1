package model

import "github.com/google/uuid"

// Question represents a single multiple-choice question of a set.
type Question struct {
	ID                 uuid.UUID `json:"id"`
	SetID              uuid.UUID `json:"set_id"`
	Text               string    `json:"text"`
	Options            []string  `json:"options"`
	CorrectOptionIndex int       `json:"correct_option_index"`
	OrderNum           int       `json:"order_num"`
	TranslatedText     string    `json:"translated_text,omitempty"`
	TranslatedOptions  []string  `json:"translated_options,omitempty"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID                uuid.UUID `json:"id"`
	Text              string    `json:"text"`
	Options           []string  `json:"options"`
	OrderNum          int       `json:"order_num"`
	TranslatedText    string    `json:"translated_text,omitempty"`
	TranslatedOptions []string  `json:"translated_options,omitempty"`
}

// ForStudent strips the answer key.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:                q.ID,
		Text:              q.Text,
		Options:           q.Options,
		OrderNum:          q.OrderNum,
		TranslatedText:    q.TranslatedText,
		TranslatedOptions: q.TranslatedOptions,
	}
}
