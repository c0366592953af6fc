package models

// Credential is the language-model API secret a user entered for their session.
type Credential struct {
	Value   string `json:"-"`
	Present bool   `json:"present"`
}
