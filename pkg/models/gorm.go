package models

// ModelsToAutoMigrate lists the models AutoMigrate creates tables for.
func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&ConnectionProfile{},
	}
}
