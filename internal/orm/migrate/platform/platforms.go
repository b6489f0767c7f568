package platform

import (
	"fmt"
	"strings"
)

// Platform names accepted by Lookup
const (
	Postgres  = "postgres"
	DB2       = "db2"
	H2        = "h2"
	MySQL     = "mysql"
	SQLServer = "sqlserver"
	SQLite    = "sqlite"
)

var platforms = map[string]func() *PlatformDdl{
	Postgres:     NewPostgresDdl,
	"postgresql": NewPostgresDdl,
	"pgx":        NewPostgresDdl,
	DB2:          NewDB2Ddl,
	H2:           NewH2Ddl,
	MySQL:        NewMySQLDdl,
	"mariadb":    NewMySQLDdl,
	SQLServer:    NewSQLServerDdl,
	"mssql":      NewSQLServerDdl,
	SQLite:       NewSQLiteDdl,
	"sqlite3":    NewSQLiteDdl,
}

func dropConstraintIfExists(table, name string) string {
	return fmt.Sprintf("alter table %s drop constraint if exists %s", table, name)
}

func dropIndexIfExists(_, name string) string {
	return "drop index if exists " + name
}

// NewPostgresDdl returns the Postgres DDL
func NewPostgresDdl() *PlatformDdl {
	p := &PlatformDdl{
		name:             Postgres,
		identitySuffix:   " generated by default as identity",
		sequences:        true,
		tableComments:    true,
		addColumn:        "add column",
		dropTable:        "drop table if exists ",
		dropTableCascade: " cascade",
		dropSequence:     "drop sequence if exists ",
		dropConstraint:   dropConstraintIfExists,
		dropIndex:        dropIndexIfExists,
		alter:            alterStandard,
		types: map[string]string{
			"timestamp": "timestamptz",
			"double":    "float",
			"blob":      "bytea",
			"json":      "jsonb",
			"clob":      "text",
		},
		quote: doubleQuote,
	}
	p.history = &postgresHistory{p: p}
	return p
}

// NewDB2Ddl returns the DB2 DDL
func NewDB2Ddl() *PlatformDdl {
	p := &PlatformDdl{
		name:            DB2,
		identitySuffix:  " generated by default as identity",
		sequences:       true,
		tableComments:   true,
		reorgAfterAlter: true,
		addColumn:       "add column",
		dropTable:       "drop table ",
		dropSequence:    "drop sequence ",
		dropConstraint: func(table, name string) string {
			return fmt.Sprintf("alter table %s drop constraint %s", table, name)
		},
		dropIndex: func(_, name string) string { return "drop index " + name },
		alter:     alterSetDataType,
		types: map[string]string{
			"uuid":    "varchar(40)",
			"text":    "clob",
			"json":    "clob",
			"double":  "double",
			"tinyint": "smallint",
		},
		quote: doubleQuote,
	}
	p.history = &systemVersionedHistory{
		p: p,
		enable: func(t, h string) []string {
			return []string{
				fmt.Sprintf("alter table %s add column sys_period_start timestamp(12) not null generated always as row begin", t),
				fmt.Sprintf("alter table %s add column sys_period_end timestamp(12) not null generated always as row end", t),
				fmt.Sprintf("alter table %s add column sys_period_txn timestamp(12) generated always as transaction start id", t),
				fmt.Sprintf("alter table %s add period system_time (sys_period_start,sys_period_end)", t),
				fmt.Sprintf("create table %s (like %s)", h, t),
				fmt.Sprintf("alter table %s add versioning use history table %s", t, h),
			}
		},
		disable: func(t string) string {
			return fmt.Sprintf("alter table %s drop versioning", t)
		},
	}
	return p
}

// NewH2Ddl returns the H2 DDL
func NewH2Ddl() *PlatformDdl {
	p := &PlatformDdl{
		name:           H2,
		identitySuffix: " auto_increment",
		sequences:      true,
		tableComments:  true,
		addColumn:      "add column",
		dropTable:      "drop table if exists ",
		dropSequence:   "drop sequence if exists ",
		dropConstraint: dropConstraintIfExists,
		dropIndex:      dropIndexIfExists,
		alter:          alterSetDataType,
		types: map[string]string{
			"text": "clob",
			"json": "varchar",
		},
		quote: doubleQuote,
	}
	p.history = noHistory{}
	return p
}

// NewMySQLDdl returns the MySQL DDL
func NewMySQLDdl() *PlatformDdl {
	p := &PlatformDdl{
		name:           MySQL,
		identitySuffix: " auto_increment",
		addColumn:      "add column",
		dropTable:      "drop table if exists ",
		dropConstraint: func(table, name string) string {
			return fmt.Sprintf("alter table %s drop foreign key %s", table, name)
		},
		dropIndex: func(table, name string) string {
			return fmt.Sprintf("drop index %s on %s", name, table)
		},
		alter: alterModify,
		types: map[string]string{
			"boolean":   "tinyint(1)",
			"timestamp": "datetime(6)",
			"uuid":      "varchar(40)",
			"text":      "longtext",
			"clob":      "longtext",
			"blob":      "longblob",
		},
		quote: func(s string) string {
			return "`" + strings.ReplaceAll(s, "`", "``") + "`"
		},
	}
	p.history = &triggerHistory{p: p, now: "now(6)", timestamp: "datetime(6)"}
	return p
}

// NewSQLServerDdl returns the SQL Server DDL
func NewSQLServerDdl() *PlatformDdl {
	p := &PlatformDdl{
		name:           SQLServer,
		identitySuffix: " identity(1,1)",
		sequences:      true,
		namedDefaults:  true,
		addColumn:      "add",
		dropTable:      "drop table if exists ",
		dropSequence:   "drop sequence if exists ",
		dropConstraint: func(table, name string) string {
			return fmt.Sprintf("IF OBJECT_ID('%s', 'F') IS NOT NULL alter table %s drop constraint %s", name, table, name)
		},
		dropIndex: func(table, name string) string {
			return fmt.Sprintf("drop index if exists %s on %s", name, table)
		},
		alter: alterRedefine,
		types: map[string]string{
			"boolean":   "bit",
			"timestamp": "datetime2",
			"uuid":      "uniqueidentifier",
			"varchar":   "nvarchar",
			"text":      "nvarchar(max)",
			"clob":      "nvarchar(max)",
			"blob":      "varbinary(max)",
			"json":      "nvarchar(max)",
			"double":    "float(32)",
		},
		quote: func(s string) string {
			return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
		},
	}
	p.history = &systemVersionedHistory{
		p: p,
		enable: func(t, h string) []string {
			return []string{
				fmt.Sprintf("alter table %s add sys_periodFrom datetime2 GENERATED ALWAYS AS ROW START NOT NULL DEFAULT SYSUTCDATETIME(),"+
					" sys_periodTo datetime2 GENERATED ALWAYS AS ROW END NOT NULL DEFAULT '9999-12-31T23:59:59.9999999',"+
					" period for system_time (sys_periodFrom, sys_periodTo)", t),
				fmt.Sprintf("alter table %s set (system_versioning = on (history_table=dbo.%s))", t, h),
			}
		},
		disable: func(t string) string {
			return fmt.Sprintf("alter table %s set (system_versioning = off)", t)
		},
	}
	return p
}

// NewSQLiteDdl returns the SQLite DDL
func NewSQLiteDdl() *PlatformDdl {
	p := &PlatformDdl{
		name:              SQLite,
		inlineIdentity:    true,
		inlineForeignKeys: true,
		addColumn:         "add column",
		dropTable:         "drop table if exists ",
		dropIndex:         dropIndexIfExists,
		alter:             alterNone,
		types: map[string]string{
			"boolean": "int",
			"uuid":    "varchar(40)",
			"json":    "text",
		},
		quote: doubleQuote,
	}
	p.history = noHistory{}
	return p
}
