package storage

import (
	"errors"
	"fmt"

	"article-gate/models"

	"gorm.io/gorm"
)

// Typisierte Fehler des Stores; die Handler bilden sie auf HTTP-Status ab.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicate        = errors.New("key already exists")
	ErrReferenced       = errors.New("row is still referenced")
	ErrMissingReference = errors.New("referenced row does not exist")
)

// Store kapselt alle Zugriffe auf die vier Article-Gate-Tabellen.
// Er wird einmal beim Start konstruiert und in die Handler injiziert.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate legt die Tabellen an bzw. zieht sie nach.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&models.Organisation{},
		&models.Author{},
		&models.Article{},
		&models.ArticleToAuthor{},
	)
}

// --- Punkt-Lookups ---

func (s *Store) GetOrganisation(id int) (*models.Organisation, error) {
	var org models.Organisation
	if err := s.db.Where("id = ?", id).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: organisation %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &org, nil
}

func (s *Store) GetAuthor(id int) (*models.Author, error) {
	var author models.Author
	if err := s.db.Where("id = ?", id).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: author %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &author, nil
}

func (s *Store) GetArticle(doi string) (*models.Article, error) {
	var article models.Article
	if err := s.db.Where("doi = ?", doi).First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: article %s", ErrNotFound, doi)
		}
		return nil, err
	}
	return &article, nil
}

func (s *Store) GetBinding(doi string, authorID int) (*models.ArticleToAuthor, error) {
	var binding models.ArticleToAuthor
	if err := s.db.Where("doi = ? AND author_id = ?", doi, authorID).First(&binding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: binding (%s, %d)", ErrNotFound, doi, authorID)
		}
		return nil, err
	}
	return &binding, nil
}

// --- Creates ---
// Alle Vorbedingungen laufen zusammen mit dem Insert in einer Transaktion,
// damit ein fehlgeschlagener Request keine Teil-Mutation hinterlässt.

func (s *Store) CreateOrganisation(org *models.Organisation) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Organisation{}).Where("id = ?", org.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: organisation %d", ErrDuplicate, org.ID)
		}
		return tx.Create(org).Error
	})
}

func (s *Store) CreateAuthor(author *models.Author) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Author{}).Where("id = ?", author.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: author %d", ErrDuplicate, author.ID)
		}
		var orgCount int64
		if err := tx.Model(&models.Organisation{}).Where("id = ?", author.AffiliationOrgID).Count(&orgCount).Error; err != nil {
			return err
		}
		if orgCount == 0 {
			return fmt.Errorf("%w: organisation %d", ErrMissingReference, author.AffiliationOrgID)
		}
		return tx.Create(author).Error
	})
}

func (s *Store) CreateArticle(article *models.Article) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Article{}).Where("doi = ?", article.DOI).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: article %s", ErrDuplicate, article.DOI)
		}
		return tx.Create(article).Error
	})
}

func (s *Store) CreateBinding(binding *models.ArticleToAuthor) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var authorCount int64
		if err := tx.Model(&models.Author{}).Where("id = ?", binding.AuthorID).Count(&authorCount).Error; err != nil {
			return err
		}
		if authorCount == 0 {
			return fmt.Errorf("%w: author %d", ErrMissingReference, binding.AuthorID)
		}
		var articleCount int64
		if err := tx.Model(&models.Article{}).Where("doi = ?", binding.DOI).Count(&articleCount).Error; err != nil {
			return err
		}
		if articleCount == 0 {
			return fmt.Errorf("%w: article %s", ErrMissingReference, binding.DOI)
		}
		var count int64
		if err := tx.Model(&models.ArticleToAuthor{}).
			Where("doi = ? AND author_id = ?", binding.DOI, binding.AuthorID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: binding (%s, %d)", ErrDuplicate, binding.DOI, binding.AuthorID)
		}
		return tx.Create(binding).Error
	})
}

// --- Alters (Voll-Ersatz, kein partielles Patchen) ---

func (s *Store) AlterOrganisation(org *models.Organisation) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Organisation{}).Where("id = ?", org.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: organisation %d", ErrNotFound, org.ID)
		}
		return tx.Model(&models.Organisation{}).Where("id = ?", org.ID).
			Select("title", "location").Updates(org).Error
	})
}

func (s *Store) AlterAuthor(author *models.Author) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Author{}).Where("id = ?", author.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: author %d", ErrNotFound, author.ID)
		}
		return tx.Model(&models.Author{}).Where("id = ?", author.ID).
			Select("name", "affiliation_org_id").Updates(author).Error
	})
}

func (s *Store) AlterArticle(article *models.Article) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Article{}).Where("doi = ?", article.DOI).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: article %s", ErrNotFound, article.DOI)
		}
		return tx.Model(&models.Article{}).Where("doi = ?", article.DOI).
			Select("title", "posting_date").Updates(article).Error
	})
}

// AlterBinding ändert ausschließlich die Position eines Autors auf einem Artikel.
func (s *Store) AlterBinding(doi string, authorID, place int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ArticleToAuthor{}).
			Where("doi = ? AND author_id = ?", doi, authorID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: binding (%s, %d)", ErrNotFound, doi, authorID)
		}
		return tx.Model(&models.ArticleToAuthor{}).
			Where("doi = ? AND author_id = ?", doi, authorID).
			Update("place", place).Error
	})
}

// --- Deletes (physisch, nur ohne abhängige Zeilen) ---

func (s *Store) DeleteOrganisation(id int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Organisation{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: organisation %d", ErrNotFound, id)
		}
		var refs int64
		if err := tx.Model(&models.Author{}).Where("affiliation_org_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: organisation %d has %d affiliated authors", ErrReferenced, id, refs)
		}
		return tx.Where("id = ?", id).Delete(&models.Organisation{}).Error
	})
}

func (s *Store) DeleteAuthor(id int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Author{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: author %d", ErrNotFound, id)
		}
		var refs int64
		if err := tx.Model(&models.ArticleToAuthor{}).Where("author_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: author %d is bound to %d articles", ErrReferenced, id, refs)
		}
		return tx.Where("id = ?", id).Delete(&models.Author{}).Error
	})
}

func (s *Store) DeleteArticle(doi string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Article{}).Where("doi = ?", doi).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: article %s", ErrNotFound, doi)
		}
		var refs int64
		if err := tx.Model(&models.ArticleToAuthor{}).Where("doi = ?", doi).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: article %s has %d author bindings", ErrReferenced, doi, refs)
		}
		return tx.Where("doi = ?", doi).Delete(&models.Article{}).Error
	})
}

func (s *Store) DeleteBinding(doi string, authorID int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("doi = ? AND author_id = ?", doi, authorID).Delete(&models.ArticleToAuthor{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: binding (%s, %d)", ErrNotFound, doi, authorID)
		}
		return nil
	})
}

// --- Join-Abfragen ---

// BindingsByAuthor liefert alle Bindungen eines Autors.
func (s *Store) BindingsByAuthor(authorID int) ([]models.ArticleToAuthor, error) {
	var bindings []models.ArticleToAuthor
	if err := s.db.Where("author_id = ?", authorID).Find(&bindings).Error; err != nil {
		return nil, err
	}
	return bindings, nil
}

// AuthorPlacement ist eine Bindung, angereichert um den vollen Autoren-Datensatz.
// AuthorInfo bleibt null, wenn der Autor zwischenzeitlich gelöscht wurde.
type AuthorPlacement struct {
	models.ArticleToAuthor
	AuthorInfo *models.Author `json:"author_info"`
}

// AuthorsOfArticle liefert die Bindungen eines Artikels, aufsteigend nach place,
// jeweils angereichert um den referenzierten Autor.
func (s *Store) AuthorsOfArticle(doi string) ([]AuthorPlacement, error) {
	var bindings []models.ArticleToAuthor
	if err := s.db.Where("doi = ?", doi).Order("place asc").Find(&bindings).Error; err != nil {
		return nil, err
	}

	placements := make([]AuthorPlacement, 0, len(bindings))
	for _, binding := range bindings {
		placement := AuthorPlacement{ArticleToAuthor: binding}
		var author models.Author
		err := s.db.Where("id = ?", binding.AuthorID).First(&author).Error
		if err == nil {
			placement.AuthorInfo = &author
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		placements = append(placements, placement)
	}
	return placements, nil
}

// --- Export ---

// Snapshot ist der vollständige Inhalt aller vier Tabellen.
type Snapshot struct {
	Organisations []models.Organisation    `json:"organisations"`
	Authors       []models.Author          `json:"authors"`
	Articles      []models.Article         `json:"articles"`
	Bindings      []models.ArticleToAuthor `json:"bindings"`
}

// ExportAll liest alle Tabellen für den Snapshot-Export.
func (s *Store) ExportAll() (*Snapshot, error) {
	var snap Snapshot
	if err := s.db.Find(&snap.Organisations).Error; err != nil {
		return nil, err
	}
	if err := s.db.Find(&snap.Authors).Error; err != nil {
		return nil, err
	}
	if err := s.db.Find(&snap.Articles).Error; err != nil {
		return nil, err
	}
	if err := s.db.Find(&snap.Bindings).Error; err != nil {
		return nil, err
	}
	return &snap, nil
}
