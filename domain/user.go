package domain

// User is the profile the external identity provider and backend API agree on.
// Only presentation fields are carried into room documents.
type User struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Email       string `json:"email,omitempty"`
}
