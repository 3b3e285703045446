package model

// UiMessage is a transient user-facing notification. Two messages are the
// same message when both fields are equal.
type UiMessage struct {
	Text    string `json:"text"`
	IsError bool   `json:"isError"`
}
