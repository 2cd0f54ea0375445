package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Fi44er/aura_cards/internal/models"
	"github.com/Fi44er/aura_cards/utils"
	"golang.org/x/mod/semver"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// SchemaVersion is the version recorded once every step has run.
	SchemaVersion = "1.9.0"

	baseVersion = "0.0.0"

	tokenAttempts = 16
)

type migrationStep struct {
	Version string
	Name    string
	Up      func(tx *gorm.DB, m *Migrator) error
}

// Migrator brings a store from any earlier schema version to SchemaVersion.
// Every step guards its own changes, so running it against a store that a
// previous run left half-migrated is safe.
type Migrator struct {
	db    *gorm.DB
	log   *utils.Logger
	keys  *utils.AccessKeyGenerator
	steps []migrationStep
}

func NewMigrator(db *gorm.DB, log *utils.Logger) *Migrator {
	return &Migrator{
		db:    db,
		log:   log,
		keys:  utils.NewAccessKeyGenerator(),
		steps: migrationSteps(),
	}
}

func migrationSteps() []migrationStep {
	return []migrationStep{
		{Version: "1.0.0", Name: "initial schema", Up: migrateV100},
		{Version: "1.1.0", Name: "collection links", Up: migrateV110},
		{Version: "1.2.0", Name: "card access keys", Up: migrateV120},
		{Version: "1.3.0", Name: "collection reservation status", Up: migrateV130},
		{Version: "1.4.0", Name: "collection link ids", Up: migrateV140},
		{Version: "1.5.0", Name: "card star price", Up: migrateV150},
		{Version: "1.6.0", Name: "airdrops", Up: migrateV160},
		{Version: "1.7.0", Name: "airdrop cover image", Up: migrateV170},
		{Version: "1.8.0", Name: "integrity constraints", Up: migrateV180},
		{Version: "1.9.0", Name: "timestamp column types", Up: migrateV190},
	}
}

// Migrate runs the migrator once at process start. Only step failures are
// returned; integrity check findings are logged.
func Migrate(db *gorm.DB, trigger bool, log *utils.Logger) error {
	if !trigger {
		log.Info("📦 Migrations disabled, skipping")
		return nil
	}

	log.Info("📦 Migrating database...")
	if err := NewMigrator(db, log).Apply(context.Background()); err != nil {
		log.Errorf("✖ Failed to migrate database: %v", err)
		return err
	}

	log.Info("✅ Database migrated successfully")
	return nil
}

func (m *Migrator) Apply(ctx context.Context) error {
	if err := m.applyUpTo(ctx, SchemaVersion); err != nil {
		return err
	}

	for _, problem := range m.CheckIntegrity(ctx) {
		m.log.Errorf("✖ Integrity check: %s", problem)
	}
	return nil
}

func (m *Migrator) applyUpTo(ctx context.Context, target string) error {
	db := m.db.WithContext(ctx)

	if err := ensureVersionTable(db); err != nil {
		return err
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	applied := 0
	for _, step := range m.steps {
		if compareVersions(step.Version, target) > 0 {
			break
		}
		if compareVersions(step.Version, current) <= 0 {
			m.log.Debugf("migration %s (%s) already applied", step.Version, step.Name)
			continue
		}

		m.log.Infof("📦 Applying migration %s (%s)", step.Version, step.Name)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := step.Up(tx, m); err != nil {
				return err
			}
			return recordVersion(tx, step.Version)
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s (%s): %w", step.Version, step.Name, err)
		}
		applied++
	}

	m.log.Infof("✅ Schema at version %s (%d migrations applied)", target, applied)
	return nil
}

// CurrentVersion is the highest recorded version, 0.0.0 for an empty store.
func (m *Migrator) CurrentVersion(ctx context.Context) (string, error) {
	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(&schemaMigration{}) {
		return baseVersion, nil
	}

	var versions []string
	if err := db.Model(&schemaMigration{}).Pluck("version", &versions).Error; err != nil {
		return "", fmt.Errorf("failed to read schema versions: %w", err)
	}

	current := baseVersion
	for _, v := range versions {
		if !semver.IsValid("v" + v) {
			m.log.Warnf("ignoring malformed schema version %q", v)
			continue
		}
		if compareVersions(v, current) > 0 {
			current = v
		}
	}
	return current, nil
}

// CheckIntegrity reports structural damage and broken invariants. It never
// fails: every finding, including a failed check query, is returned as text.
func (m *Migrator) CheckIntegrity(ctx context.Context) []string {
	db := m.db.WithContext(ctx)
	var problems []string

	if db.Dialector.Name() == DialectSQLite {
		var result string
		if err := db.Raw("PRAGMA integrity_check").Row().Scan(&result); err != nil {
			problems = append(problems, fmt.Sprintf("integrity_check failed to run: %v", err))
		} else if result != "ok" {
			problems = append(problems, fmt.Sprintf("integrity_check: %s", result))
		}
	}

	var missingLinks int64
	if err := db.Model(&models.Collection{}).Where("link_id IS NULL OR link_id = ''").Count(&missingLinks).Error; err != nil {
		problems = append(problems, fmt.Sprintf("failed to count collections without link id: %v", err))
	} else if missingLinks > 0 {
		problems = append(problems, fmt.Sprintf("%d collections without link id", missingLinks))
	}

	var keys []string
	if err := db.Model(&models.Card{}).Where("access_key IS NOT NULL").Pluck("access_key", &keys).Error; err != nil {
		problems = append(problems, fmt.Sprintf("failed to read access keys: %v", err))
	} else {
		malformed := 0
		for _, key := range keys {
			if !utils.IsAccessKey(key) {
				malformed++
			}
		}
		if malformed > 0 {
			problems = append(problems, fmt.Sprintf("%d cards with malformed access key", malformed))
		}
	}

	var orphanReservations int64
	if err := db.Model(&models.AirdropCard{}).Where("is_reserved = ? AND reserved_by IS NULL", true).Count(&orphanReservations).Error; err != nil {
		problems = append(problems, fmt.Sprintf("failed to count airdrop reservations: %v", err))
	} else if orphanReservations > 0 {
		problems = append(problems, fmt.Sprintf("%d reserved airdrop cards without claimant", orphanReservations))
	}

	return problems
}

func ensureVersionTable(db *gorm.DB) error {
	if db.Migrator().HasTable(&schemaMigration{}) {
		return nil
	}
	if err := db.Migrator().CreateTable(&schemaMigration{}); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

func recordVersion(tx *gorm.DB, version string) error {
	row := schemaMigration{Version: version, AppliedAt: time.Now().UTC()}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "version"}},
		DoUpdates: clause.AssignmentColumns([]string{"applied_at"}),
	}).Create(&row).Error
}

func compareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

func createTableIfMissing(tx *gorm.DB, model interface{}) error {
	if tx.Migrator().HasTable(model) {
		return nil
	}
	return tx.Migrator().CreateTable(model)
}

// addColumnsIfMissing adds the named struct fields of model that the table
// does not have yet.
func addColumnsIfMissing(tx *gorm.DB, model interface{}, fields ...string) error {
	for _, field := range fields {
		if tx.Migrator().HasColumn(model, field) {
			continue
		}
		if err := tx.Migrator().AddColumn(model, field); err != nil {
			return fmt.Errorf("failed to add column %s: %w", field, err)
		}
	}
	return nil
}

// uniqueToken draws values from gen until one is absent from table.column.
func uniqueToken(tx *gorm.DB, table, column string, gen func() (string, error)) (string, error) {
	for i := 0; i < tokenAttempts; i++ {
		token, err := gen()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Table(table).Where(column+" = ?", token).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return token, nil
		}
	}
	return "", fmt.Errorf("no unique %s.%s after %d attempts", table, column, tokenAttempts)
}

func linkIDSource() (string, error) {
	return utils.NewLinkID(), nil
}

// backfillLinkIDs assigns a fresh link id to every row of table lacking one.
func backfillLinkIDs(tx *gorm.DB, table string) (int, error) {
	var ids []int64
	if err := tx.Table(table).Where("link_id IS NULL OR link_id = ''").Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	for _, id := range ids {
		linkID, err := uniqueToken(tx, table, "link_id", linkIDSource)
		if err != nil {
			return 0, err
		}
		if err := tx.Table(table).Where("id = ?", id).Update("link_id", linkID).Error; err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func migrateV100(tx *gorm.DB, _ *Migrator) error {
	for _, model := range []interface{}{&userV100{}, &collectionV100{}, &cardV100{}, &tradeLinkV100{}} {
		if err := createTableIfMissing(tx, model); err != nil {
			return err
		}
	}
	return nil
}

func migrateV110(tx *gorm.DB, _ *Migrator) error {
	if err := createTableIfMissing(tx, &collectionLinkV110{}); err != nil {
		return err
	}
	return addColumnsIfMissing(tx, &collectionV110{}, "Description", "IsPublished")
}

func migrateV120(tx *gorm.DB, _ *Migrator) error {
	return addColumnsIfMissing(tx, &cardV120{}, "AccessKey")
}

func migrateV130(tx *gorm.DB, _ *Migrator) error {
	return addColumnsIfMissing(tx, &collectionV130{}, "ReservationStatus", "ReservedBy", "ReservedAt")
}

func migrateV140(tx *gorm.DB, m *Migrator) error {
	if err := addColumnsIfMissing(tx, &collectionV140{}, "LinkID"); err != nil {
		return err
	}

	// Backfill before the unique index: legacy rows may share an empty link id.
	filled, err := backfillLinkIDs(tx, "collections")
	if err != nil {
		return fmt.Errorf("failed to backfill collection link ids: %w", err)
	}
	if filled > 0 {
		m.log.Infof("assigned link ids to %d collections", filled)
	}

	return tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_collections_link_id ON collections(link_id)").Error
}

func migrateV150(tx *gorm.DB, _ *Migrator) error {
	if err := addColumnsIfMissing(tx, &cardV150{}, "StarPrice"); err != nil {
		return err
	}
	return tx.Exec("UPDATE cards SET star_price = 1 WHERE star_price IS NULL").Error
}

func migrateV160(tx *gorm.DB, _ *Migrator) error {
	if err := createTableIfMissing(tx, &airdropV160{}); err != nil {
		return err
	}
	return createTableIfMissing(tx, &airdropCardV160{})
}

func migrateV170(tx *gorm.DB, _ *Migrator) error {
	return addColumnsIfMissing(tx, &airdropV170{}, "CoverImage")
}

func migrateV180(tx *gorm.DB, m *Migrator) error {
	if err := dedupeAirdropPool(tx, m); err != nil {
		return fmt.Errorf("failed to dedupe airdrop pool: %w", err)
	}
	if err := tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_airdrop_cards_pair ON airdrop_cards(airdrop_id, card_id)").Error; err != nil {
		return err
	}

	if err := dedupeAccessKeys(tx, m); err != nil {
		return fmt.Errorf("failed to dedupe access keys: %w", err)
	}
	if err := tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_access_key ON cards(access_key)").Error; err != nil {
		return err
	}

	if err := addColumnsIfMissing(tx, &airdropV180{}, "LinkID"); err != nil {
		return err
	}
	if _, err := backfillLinkIDs(tx, "airdrops"); err != nil {
		return fmt.Errorf("failed to backfill airdrop link ids: %w", err)
	}
	if err := tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_airdrops_link_id ON airdrops(link_id)").Error; err != nil {
		return err
	}

	// One claim per user per airdrop. Legacy stores may already break this;
	// the claim path checks it in its transaction either way.
	var doubleClaims int64
	err := tx.Raw(`SELECT COUNT(*) FROM (
		SELECT airdrop_id, reserved_by FROM airdrop_cards
		WHERE reserved_by IS NOT NULL
		GROUP BY airdrop_id, reserved_by HAVING COUNT(*) > 1
	) d`).Scan(&doubleClaims).Error
	if err != nil {
		return err
	}
	if doubleClaims == 0 {
		err := tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_airdrop_cards_claimant ON airdrop_cards(airdrop_id, reserved_by) WHERE reserved_by IS NOT NULL").Error
		if err != nil {
			return err
		}
	} else {
		m.log.Warnf("%d users hold several cards of one airdrop, claimant index not created", doubleClaims)
	}

	for _, stmt := range []string{
		"CREATE INDEX IF NOT EXISTS idx_cards_owner_id ON cards(owner_id)",
		"CREATE INDEX IF NOT EXISTS idx_cards_collection_id ON cards(collection_id)",
		"CREATE INDEX IF NOT EXISTS idx_trade_links_card_active ON trade_links(card_id, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_airdrop_cards_pool ON airdrop_cards(airdrop_id, is_reserved)",
	} {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}

// dedupeAirdropPool keeps one row per (airdrop, card): the reserved one if
// any, otherwise the oldest.
func dedupeAirdropPool(tx *gorm.DB, m *Migrator) error {
	type pair struct {
		AirdropID int64
		CardID    int64
	}
	var pairs []pair
	err := tx.Raw(`SELECT airdrop_id, card_id FROM airdrop_cards
		GROUP BY airdrop_id, card_id HAVING COUNT(*) > 1`).Scan(&pairs).Error
	if err != nil {
		return err
	}

	// Only ids are read here: reserved_at may still be a TEXT column.
	for _, p := range pairs {
		var ids []int64
		err := tx.Table("airdrop_cards").
			Where("airdrop_id = ? AND card_id = ?", p.AirdropID, p.CardID).
			Order("is_reserved DESC, id ASC").
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids[1:]).Delete(&models.AirdropCard{}).Error; err != nil {
			return err
		}
		m.log.Warnf("removed %d duplicate pool rows of card %d in airdrop %d", len(ids)-1, p.CardID, p.AirdropID)
	}
	return nil
}

// dedupeAccessKeys clears empty keys and gives every card but the oldest of a
// shared key a new one.
func dedupeAccessKeys(tx *gorm.DB, m *Migrator) error {
	if err := tx.Model(&models.Card{}).Where("access_key = ?", "").Update("access_key", nil).Error; err != nil {
		return err
	}

	var shared []string
	err := tx.Raw(`SELECT access_key FROM cards WHERE access_key IS NOT NULL
		GROUP BY access_key HAVING COUNT(*) > 1`).Scan(&shared).Error
	if err != nil {
		return err
	}

	for _, key := range shared {
		var ids []int64
		if err := tx.Model(&models.Card{}).Where("access_key = ?", key).Order("id ASC").Pluck("id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids[1:] {
			fresh, err := uniqueToken(tx, "cards", "access_key", m.keys.Generate)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.Card{}).Where("id = ?", id).Update("access_key", fresh).Error; err != nil {
				return err
			}
		}
		m.log.Warnf("reassigned access key %s on %d cards", key, len(ids)-1)
	}
	return nil
}

// Columns read back as time.Time. The first releases declared them TEXT and
// wrote isoformat strings, which the sqlite driver returns unparsed.
var timestampColumns = []struct {
	Table   string
	Columns []string
}{
	{"users", []string{"created_at"}},
	{"collections", []string{"created_at", "reserved_at"}},
	{"cards", []string{"created_at"}},
	{"trade_links", []string{"created_at"}},
	{"collection_links", []string{"created_at"}},
	{"airdrops", []string{"created_at"}},
	{"airdrop_cards", []string{"reserved_at"}},
}

var createTableHead = regexp.MustCompile("(?is)^\\s*CREATE\\s+TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?(?:\"[^\"]+\"|`[^`]+`|\\[[^\\]]+\\]|[^\\s(]+)\\s*\\(")

func migrateV190(tx *gorm.DB, m *Migrator) error {
	for _, tc := range timestampColumns {
		declared := make(map[string]string, len(tc.Columns))
		legacy := make(map[string]string)
		for _, column := range tc.Columns {
			typ, err := columnType(tx, tc.Table, column)
			if err != nil {
				return fmt.Errorf("failed to read type of %s.%s: %w", tc.Table, column, err)
			}
			if typ == "" {
				continue
			}
			declared[column] = typ
			if !isTimeType(typ) {
				legacy[column] = typ
			}
		}

		if len(legacy) > 0 {
			var err error
			if tx.Dialector.Name() == DialectSQLite {
				err = rebuildWithTimestamps(tx, tc.Table, legacy)
			} else {
				err = alterToTimestamps(tx, tc.Table, legacy)
			}
			if err != nil {
				return fmt.Errorf("failed to convert timestamps of %s: %w", tc.Table, err)
			}
			m.log.Infof("converted %d text timestamp columns of %s", len(legacy), tc.Table)
		}

		if tx.Dialector.Name() != DialectSQLite {
			continue
		}
		for column := range declared {
			if err := normalizeTimestamps(tx, tc.Table, column); err != nil {
				return fmt.Errorf("failed to normalize %s.%s: %w", tc.Table, column, err)
			}
		}
	}
	return nil
}

// columnType is the declared type of table.column, empty when either is missing.
func columnType(tx *gorm.DB, table, column string) (string, error) {
	var typ string
	var err error
	if tx.Dialector.Name() == DialectSQLite {
		err = tx.Raw("SELECT type FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&typ).Error
	} else {
		err = tx.Raw(`SELECT data_type FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?`, table, column).Scan(&typ).Error
	}
	return typ, err
}

func isTimeType(typ string) bool {
	typ = strings.ToLower(typ)
	return strings.Contains(typ, "time") || strings.Contains(typ, "date")
}

// rebuildWithTimestamps recreates a sqlite table from its own DDL with the
// given columns retyped DATETIME, then restores its rows, indexes and triggers.
// sqlite cannot change a column type in place.
func rebuildWithTimestamps(tx *gorm.DB, table string, columns map[string]string) error {
	var ddl string
	if err := tx.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&ddl).Error; err != nil {
		return err
	}
	if !createTableHead.MatchString(ddl) {
		return fmt.Errorf("unrecognized table definition: %s", ddl)
	}

	rebuilt := table + "_rebuild"
	ddl = createTableHead.ReplaceAllLiteralString(ddl, fmt.Sprintf(`CREATE TABLE "%s" (`, rebuilt))
	for column, typ := range columns {
		pattern := regexp.MustCompile(fmt.Sprintf("(?i)([(,]\\s*[\"`\\[]?%s[\"`\\]]?\\s+)%s([\\s,)])",
			regexp.QuoteMeta(column), regexp.QuoteMeta(typ)))
		if !pattern.MatchString(ddl) {
			return fmt.Errorf("column %s %s not found in table definition", column, typ)
		}
		ddl = pattern.ReplaceAllString(ddl, "${1}DATETIME${2}")
	}

	var extras []string
	err := tx.Raw("SELECT sql FROM sqlite_master WHERE tbl_name = ? AND type IN ('index', 'trigger') AND sql IS NOT NULL", table).
		Scan(&extras).Error
	if err != nil {
		return err
	}

	stmts := []string{
		ddl,
		fmt.Sprintf(`INSERT INTO "%s" SELECT * FROM "%s"`, rebuilt, table),
		fmt.Sprintf(`DROP TABLE "%s"`, table),
		fmt.Sprintf(`ALTER TABLE "%s" RENAME TO "%s"`, rebuilt, table),
	}
	for _, stmt := range append(stmts, extras...) {
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func alterToTimestamps(tx *gorm.DB, table string, columns map[string]string) error {
	for column := range columns {
		stmt := fmt.Sprintf(`ALTER TABLE "%[1]s" ALTER COLUMN "%[2]s" DROP DEFAULT,
			ALTER COLUMN "%[2]s" TYPE TIMESTAMPTZ USING NULLIF("%[2]s", '')::timestamptz`, table, column)
		if err := tx.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// normalizeTimestamps rewrites isoformat values into the driver's own layout
// so text comparison orders old and new rows alike. Empty strings become NULL.
func normalizeTimestamps(tx *gorm.DB, table, column string) error {
	stmt := fmt.Sprintf(`UPDATE "%[1]s" SET "%[2]s" = CASE WHEN "%[2]s" = '' THEN NULL ELSE REPLACE("%[2]s", 'T', ' ') END
		WHERE typeof("%[2]s") = 'text' AND ("%[2]s" = '' OR "%[2]s" LIKE '____-__-__T%%')`, table, column)
	return tx.Exec(stmt).Error
}
