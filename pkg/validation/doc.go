// Package validation checks user supplied names and paths before they reach
// the filesystem.
//
// PathValidator confines file nodes to a root directory. A path is rejected
// when it is absolute, climbs out with "..", or resolves through a symlink to
// somewhere outside the root:
//
//	v, err := validation.NewPathValidator(root)
//	if err != nil {
//	    return err
//	}
//	full, err := v.Validate("reports/today.txt")
//
// ValidateGraphName guards the names used as graph file names by the
// filesystem repository.
//
// All types are safe for concurrent use.
package validation
