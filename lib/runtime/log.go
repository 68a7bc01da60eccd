package runtime

import (
	"os"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// init gates debug-level structured logging off the WISP_DEBUG
// environment variable, matching the teacher's BashBridge.debug /
// TRASHTALK_DEBUG split (SPEC_FULL.md §1 "Logging"). commonlog with the
// simple backend is the same pairing the teacher's server configures.
func init() {
	verbosity := 0
	if os.Getenv("WISP_DEBUG") != "" {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
}
