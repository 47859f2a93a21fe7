package models

// Identity is the signed-in user as the views see it.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
}

// Label is what the navigation shows for the user.
func (i *Identity) Label() string {
	if i == nil {
		return ""
	}
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.Email != "" {
		return i.Email
	}
	return "Profile"
}
