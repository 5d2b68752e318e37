// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Package paths builds the relative paths of the on-disk resources dwex
// keeps under its own .dwex directory, such as the frontend's
// debuginfod-style cache directory.
package paths

import "path"

// resourceDir is the subdirectory, relative to the caller-supplied root,
// under which dwex keeps its own resources (cached split debuginfo, etc).
const resourceDir = ".dwex"

// ResourcePath builds a path under the resource directory from the supplied
// subdirectory and filename components. Either may be empty.
func ResourcePath(subDir string, fileName string) (string, error) {
	p := resourceDir
	if subDir != "" {
		p = path.Join(p, subDir)
	}
	if fileName != "" {
		p = path.Join(p, fileName)
	}
	return p, nil
}
