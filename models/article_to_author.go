package models

// ArticleToAuthor verbindet einen Artikel mit einem seiner Autoren.
// Place kodiert die 1-indizierte Position des Autors auf dem Artikel.
type ArticleToAuthor struct {
	DOI      string `json:"doi" gorm:"column:doi;primaryKey"`
	AuthorID int    `json:"author_id" gorm:"primaryKey;autoIncrement:false"`
	Place    int    `json:"place" gorm:"not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (ArticleToAuthor) TableName() string {
	return "article_to_authors"
}

// Validate prüft alle Feld-Regeln des Payloads.
func (b *ArticleToAuthor) Validate() error {
	if err := checkNonEmpty("doi", b.DOI); err != nil {
		return err
	}
	if err := checkID("author_id", b.AuthorID); err != nil {
		return err
	}
	if err := checkPlace(b.Place); err != nil {
		return err
	}
	return nil
}
