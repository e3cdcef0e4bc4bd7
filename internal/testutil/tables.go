package testutil

import "github.com/roach88/arel/internal/arel"

// Users returns the users fixture table: id, name, age.
func Users(engine arel.Engine) *arel.Table {
	return arel.NewTable("users", engine, "id", "name", "age")
}

// Photos returns the photos fixture table: id, user_id, camera_id.
func Photos(engine arel.Engine) *arel.Table {
	return arel.NewTable("photos", engine, "id", "user_id", "camera_id")
}

// Cameras returns the cameras fixture table: id, name.
func Cameras(engine arel.Engine) *arel.Table {
	return arel.NewTable("cameras", engine, "id", "name")
}
