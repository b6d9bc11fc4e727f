package specification

import "gorm.io/gorm"

// ByCollection filters document chunks by logical collection name
type ByCollection struct {
	Name string
}

func (s ByCollection) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("collection = ?", s.Name)
}
