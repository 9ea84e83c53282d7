package types

// User represents a registered account.
// Every user owns exactly one profile photo and any number of images.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" gorm:"primaryKey"`

	// Username is the unique login name chosen at sign-up.
	Username string `json:"username"`

	// PasswordHash stores the digest of the user's password.
	// This field is never exposed in responses.
	PasswordHash string `json:"-"`

	// Description is free text shown on the user's profile.
	Description string `json:"description"`

	// ProfilePhotoID references the photo created for the user at sign-up.
	ProfilePhotoID int `json:"profile_photo_id"`

	// ProfilePhoto is only populated by full fetches.
	ProfilePhoto *ProfilePhoto `json:"profile_photo,omitempty" gorm:"foreignKey:ProfilePhotoID"`

	// Images uploaded by the user. Never loaded by the store; kept for
	// the relationship definition.
	Images []Image `json:"-" gorm:"foreignKey:UserID"`
}

// TableName avoids the reserved word "user".
func (User) TableName() string {
	return "user_account"
}

// ProfilePhoto holds the avatar of exactly one user.
type ProfilePhoto struct {
	// ID is the unique identifier of the photo.
	ID int `json:"id" gorm:"primaryKey"`

	// ImageData is the base64 encoded photo content. Empty until the
	// owner uploads one from the profile page.
	ImageData string `json:"image_data"`
}

func (ProfilePhoto) TableName() string {
	return "profile_photo"
}
