package types

import "time"

// Image represents an uploaded picture.
// Its title is the external lookup key used by routes.
type Image struct {
	// ID is the unique identifier of the image.
	ID int `json:"id" gorm:"primaryKey"`

	// Title is the unique, human-readable name of the image.
	Title string `json:"title"`

	// Description is optional free text.
	Description string `json:"description"`

	// ImageData is the base64 encoded image content.
	ImageData string `json:"image_data"`

	// ViewCount is the number of times the image page was shown.
	// It starts at zero and only grows.
	ViewCount int `json:"view_count"`

	// UploadDate is the calendar date of the upload. It never changes.
	UploadDate time.Time `json:"upload_date"`

	// UserID references the owner captured at upload time.
	UserID int `json:"user_id"`

	// User is the owner, populated by full fetches only.
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`

	// Tags attached to the image, populated by full fetches only.
	Tags []Tag `json:"tags,omitempty" gorm:"many2many:image_tag;"`
}

func (Image) TableName() string {
	return "image"
}

// TagNames returns the names of the image's tags in order.
func (i Image) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, tag := range i.Tags {
		names = append(names, tag.Name)
	}
	return names
}
