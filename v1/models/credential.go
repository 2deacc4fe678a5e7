package models

// Credential is the input to a verification attempt. It is one of
// PasswordCredential, EmailCredential or NoCredential.
type Credential interface {
	credentialType() CredentialType
}

// PasswordCredential carries a submitted password
type PasswordCredential struct {
	Value string
}

// EmailCredential carries a submitted email address, as typed by the user
type EmailCredential struct {
	Value string
}

// NoCredential is used for open content
type NoCredential struct{}

func (PasswordCredential) credentialType() CredentialType { return CredentialTypePassword }
func (EmailCredential) credentialType() CredentialType    { return CredentialTypeEmail }
func (NoCredential) credentialType() CredentialType       { return CredentialTypeNone }

// TypeOf returns the log classification of a credential. A nil credential is treated as none.
func TypeOf(c Credential) CredentialType {
	if c == nil {
		return CredentialTypeNone
	}
	return c.credentialType()
}

// String redacts password values so a credential can be logged safely
func (PasswordCredential) String() string { return "password(redacted)" }
