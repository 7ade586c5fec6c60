package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"echo/internal/config"
	"echo/internal/models"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                      "test",
		DBDriver:                 "sqlite",
		DBSQLitePath:             filepath.Join(t.TempDir(), "echo.db"),
		DBMaxOpenConns:           4,
		DBMaxIdleConns:           2,
		DBPoolTimeoutSeconds:     5,
		DBConnMaxLifetimeMinutes: 15,
	}
}

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}

	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_SQLiteAppliesSchema(t *testing.T) {
	cfg := sqliteConfig(t)

	db, err := Connect(cfg)
	require.NoError(t, err)
	defer func() { _ = Close(db) }()

	for _, model := range Models() {
		assert.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}

	user := models.User{ID: "u-1", Username: "alice", Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)

	dup := models.User{ID: "u-2", Username: "alice", Email: "b@example.com", PasswordHash: "x"}
	assert.ErrorIs(t, db.Create(&dup).Error, gorm.ErrDuplicatedKey)

	var roles int64
	require.NoError(t, db.Model(&models.Role{}).Count(&roles).Error)
	assert.Equal(t, int64(2), roles)

	// seeding twice is a no-op
	require.NoError(t, SeedRoles(context.Background(), db))
	require.NoError(t, db.Model(&models.Role{}).Count(&roles).Error)
	assert.Equal(t, int64(2), roles)
}

func TestDialector_UnknownDriver(t *testing.T) {
	_, err := Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestDialector_Names(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := Dialector(&config.Config{DBDriver: driver, DBHost: "localhost", DBPort: "3306", DBPoolTimeoutSeconds: 5})
		require.NoError(t, err)
		assert.Equal(t, driver, d.Name())
	}
}

func TestMySQLDSN_EscapesCredentials(t *testing.T) {
	cfg := &config.Config{
		DBUser:               "echo",
		DBPassword:           "p@ss/w:rd?x=1",
		DBHost:               "db.internal",
		DBPort:               "3307",
		DBName:               "echo",
		DBPoolTimeoutSeconds: 7,
	}

	parsed, err := mysqldriver.ParseDSN(mysqlDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "echo", parsed.User)
	assert.Equal(t, "p@ss/w:rd?x=1", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "echo", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.ClientFoundRows)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Equal(t, 7*time.Second, parsed.Timeout)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name      string
		driver    string
		env       string
		mode      string
		want      SchemaPlan
		expectErr bool
	}{
		{"mysql hybrid development", "mysql", "development", "", SchemaPlan{Mode: "hybrid", SQL: true, Auto: true}, false},
		{"mysql hybrid production", "mysql", "production", "hybrid", SchemaPlan{Mode: "hybrid", SQL: true}, false},
		{"postgres hybrid staging", "postgres", "staging", "", SchemaPlan{Mode: "hybrid", SQL: true}, false},
		{"mysql auto production refused", "mysql", "production", "auto", SchemaPlan{}, true},
		{"postgres sql", "postgres", "development", " SQL ", SchemaPlan{Mode: "sql", SQL: true}, false},
		{"sqlite hybrid falls back to auto", "sqlite", "production", "", SchemaPlan{Mode: "hybrid", Auto: true}, false},
		{"sqlite auto in production", "sqlite", "production", "auto", SchemaPlan{Mode: "auto", Auto: true}, false},
		{"sqlite sql unavailable", "sqlite", "development", "sql", SchemaPlan{}, true},
		{"unknown mode", "mysql", "development", "magic", SchemaPlan{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanSchema(&config.Config{DBDriver: tt.driver, Env: tt.env, DBSchemaMode: tt.mode})
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres"} {
		list, err := Migrations(driver)
		require.NoError(t, err)
		require.NotEmpty(t, list, driver)
		assert.Equal(t, "000001_init_schema", list[0].String())
		assert.Contains(t, list[0].Up, "CREATE TABLE IF NOT EXISTS users")
		assert.NotEmpty(t, list[0].Down)
	}

	list, err := Migrations("sqlite")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = NewMigrator(nil, "sqlite")
	assert.Error(t, err)
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_second.up.sql":   {Data: []byte("SELECT 2;")},
		"m/000002_second.down.sql": {Data: []byte("SELECT -2;")},
		"m/000001_first.up.sql":    {Data: []byte("SELECT 1;")},
		"m/000001_first.down.sql":  {Data: []byte("SELECT -1;")},
		"m/README.md":              {Data: []byte("ignored")},
	}

	list, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "000001_first", list[0].String())
	assert.Equal(t, "000002_second", list[1].String())
	assert.Equal(t, "SELECT -2;", list[1].Down)

	fsys["m/000002_again.up.sql"] = &fstest.MapFile{Data: []byte("SELECT 3;")}
	fsys["m/000002_again.down.sql"] = &fstest.MapFile{Data: []byte("SELECT -3;")}
	_, err = LoadMigrations(fsys, "m")
	assert.ErrorContains(t, err, "version 2")

	delete(fsys, "m/000002_again.up.sql")
	delete(fsys, "m/000002_second.down.sql")
	_, err = LoadMigrations(fsys, "m")
	assert.Error(t, err)
}

func TestStatements(t *testing.T) {
	script := `-- header comment
CREATE TABLE a (
  id INT
);

CREATE INDEX idx_a ON a (id);
-- trailing
`
	stmts := statements(script)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (\n  id INT\n)", stmts[0])
	assert.Equal(t, "CREATE INDEX idx_a ON a (id)", stmts[1])
}

func TestPendingScripts(t *testing.T) {
	scripts := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}}

	pending, err := pendingScripts(scripts, nil)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	pending, err = pendingScripts(scripts, []int{1})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	_, err = pendingScripts(scripts, []int{1, 7})
	assert.ErrorContains(t, err, "000007")
}

func TestMigrator_SQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	ctx := context.Background()

	mg := &Migrator{db: db, driver: "sqlite", scripts: []Migration{
		{Version: 1, Name: "things", Up: "CREATE TABLE things (id INTEGER);\nCREATE INDEX idx_things ON things (id);", Down: "DROP TABLE things;"},
		{Version: 2, Name: "broken", Up: "CREATE TABLE nope (", Down: ""},
	}}

	applied, err := mg.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	n, err := mg.Up(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, db.Migrator().HasTable("things"))

	applied, err = mg.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)

	assert.ErrorContains(t, mg.Down(ctx, 2), "not applied")
	assert.ErrorContains(t, mg.Down(ctx, 9), "not found")

	require.NoError(t, mg.Down(ctx, 1))
	assert.False(t, db.Migrator().HasTable("things"))
	applied, err = mg.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
