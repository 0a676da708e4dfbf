package models

// DegreeType tags how far an address-book entry sits from its owner.
type DegreeType string

const (
	DegreeFirst  DegreeType = "FIRST_DEGREE"
	DegreeSecond DegreeType = "SECOND_DEGREE"
)

// Valid reports whether d is a known degree.
func (d DegreeType) Valid() bool {
	return d == DegreeFirst || d == DegreeSecond
}

// Contact is a directed address-book edge from OwnerID to either an external
// person or, when ContactUserID is set, another user.
type Contact struct {
	BaseModel

	OwnerID       string     `gorm:"type:uuid;not null;index" json:"owner_id"`
	ContactUserID *string    `gorm:"type:uuid;index" json:"contact_user_id,omitempty"`
	Name          string     `gorm:"size:255" json:"name"`
	Email         string     `gorm:"size:255;index" json:"email,omitempty"`
	Phone         string     `gorm:"size:64" json:"phone,omitempty"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`
	DegreeType    DegreeType `gorm:"type:varchar(32);not null;default:'FIRST_DEGREE'" json:"degree_type"`

	Owner       *User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	ContactUser *User `gorm:"foreignKey:ContactUserID;constraint:OnDelete:SET NULL" json:"contact_user,omitempty"`
}
