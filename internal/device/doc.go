// Package device provides the LUCID device directory.
//
// The directory is the metadata source for the overview grid. Each Entry is
// a named device belonging to a beamline, with free-form metadata such as
// location_group and functional_group that the grid groups by.
//
// # Key Types
//
//   - Entry: one catalogued device
//   - Repository / SQLiteRepository: persistent catalogue in the devices table
//   - Source: anything that can search entries by beamline
//   - RepositorySource: active entries from a Repository
//   - DemoSource: a synthetic beamline of stands and systems
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	if _, err := device.ImportJSON(ctx, repo, f, false); err != nil {
//	    return err
//	}
//	entities, err := device.Collect(ctx, device.NewRepositorySource(repo), []string{"tmo"})
package device
