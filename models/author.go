package models

// Author repräsentiert einen Autor samt Zugehörigkeit zu einer Organisation.
type Author struct {
	ID               int    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name             string `json:"name" gorm:"not null"`
	AffiliationOrgID int    `json:"affiliation_org_id" gorm:"index;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (Author) TableName() string {
	return "authors"
}

// Validate prüft alle Feld-Regeln des Payloads.
func (a *Author) Validate() error {
	if err := checkID("id", a.ID); err != nil {
		return err
	}
	if err := checkNonEmpty("name", a.Name); err != nil {
		return err
	}
	if err := checkID("affiliation_org_id", a.AffiliationOrgID); err != nil {
		return err
	}
	return nil
}
