package migrations

type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

func All() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "initial_schema",
			UpSQL:   initialSchemaSQL,
		},
		{
			Version: 2,
			Name:    "sessions",
			UpSQL:   sessionsSchemaSQL,
		},
		{
			Version: 3,
			Name:    "audit_log",
			UpSQL:   auditLogSchemaSQL,
		},
	}
}
