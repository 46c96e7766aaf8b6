package models

// User is the local mirror of a profile owned by the external identity provider.
type User struct {
	ID              int64   `json:"id"`
	UID             string  `json:"uid"`
	Username        string  `json:"username"`
	DisplayName     string  `json:"displayName"`
	Email           string  `json:"email"`
	Bio             *string `json:"bio"`
	ProfileImageURL *string `json:"profileImageUrl"`
	Location        *string `json:"location"`
}

type InsertUser struct {
	UID             string  `json:"uid"`
	Username        string  `json:"username"`
	DisplayName     string  `json:"displayName"`
	Email           string  `json:"email"`
	Bio             *string `json:"bio"`
	ProfileImageURL *string `json:"profileImageUrl"`
	Location        *string `json:"location"`
}

// UserPatch carries a partial update; nil fields are left untouched.
type UserPatch struct {
	Username        *string `json:"username"`
	DisplayName     *string `json:"displayName"`
	Email           *string `json:"email"`
	Bio             *string `json:"bio"`
	ProfileImageURL *string `json:"profileImageUrl"`
	Location        *string `json:"location"`
}

func (in InsertUser) ToUser(id int64) User {
	return User{
		ID:              id,
		UID:             in.UID,
		Username:        in.Username,
		DisplayName:     in.DisplayName,
		Email:           in.Email,
		Bio:             cloneString(in.Bio),
		ProfileImageURL: cloneString(in.ProfileImageURL),
		Location:        cloneString(in.Location),
	}
}

// Clone returns a copy that shares no pointers with u.
func (u User) Clone() User {
	u.Bio = cloneString(u.Bio)
	u.ProfileImageURL = cloneString(u.ProfileImageURL)
	u.Location = cloneString(u.Location)
	return u
}

// Apply merges the non-nil patch fields into u.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Bio != nil {
		u.Bio = cloneString(p.Bio)
	}
	if p.ProfileImageURL != nil {
		u.ProfileImageURL = cloneString(p.ProfileImageURL)
	}
	if p.Location != nil {
		u.Location = cloneString(p.Location)
	}
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
