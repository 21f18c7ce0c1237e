package models

// Article repräsentiert einen wissenschaftlichen Artikel, identifiziert über seine DOI.
type Article struct {
	DOI         string `json:"doi" gorm:"column:doi;primaryKey"`
	Title       string `json:"title" gorm:"not null"`
	PostingDate string `json:"posting_date" gorm:"not null"` // Format YYYY-MM-DD
}

// TableName gibt explizit den Tabellennamen an.
func (Article) TableName() string {
	return "articles"
}

// Validate prüft alle Feld-Regeln des Payloads.
func (a *Article) Validate() error {
	if err := checkNonEmpty("doi", a.DOI); err != nil {
		return err
	}
	if err := checkNonEmpty("title", a.Title); err != nil {
		return err
	}
	if err := checkDate("posting_date", a.PostingDate); err != nil {
		return err
	}
	return nil
}
