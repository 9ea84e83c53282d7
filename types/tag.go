package types

// Tag is a label shared by any number of images.
// Tags are created on first use and never renamed or removed.
type Tag struct {
	// ID is the unique identifier of the tag.
	ID int `json:"id" gorm:"primaryKey"`

	// Name is the unique tag value.
	Name string `json:"name"`
}

func (Tag) TableName() string {
	return "tag"
}
