/*package smash contains the output layer of a heavy-ion transport
simulation. The two user-facing components are lib/output, which writes
per-event particle and collision tables into a single container file, and
lib/interpolate, which builds natural cubic splines over tabulated data
(cross sections, equations of state, and the like). Almost all of the heavy
lifting is done by lib/'s subpackages.
*/
package smash

import (
	"github.com/Triple-S/smash/lib/tabular"
)

// FormatVersion is the version of the container file format. This can
// potentially be used to differentiate between breaking changes to the
// output schema.
const FormatVersion = tabular.Version
