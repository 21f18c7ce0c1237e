package models

// Organisation repräsentiert eine (wissenschaftliche) Einrichtung, der Autoren angehören.
type Organisation struct {
	ID       int    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title    string `json:"title" gorm:"not null"`
	Location string `json:"location,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Organisation) TableName() string {
	return "organisations"
}

// Validate prüft alle Feld-Regeln des Payloads.
func (o *Organisation) Validate() error {
	if err := checkID("id", o.ID); err != nil {
		return err
	}
	if err := checkNonEmpty("title", o.Title); err != nil {
		return err
	}
	return nil
}
