package binlog

import (
	"fmt"

	"github.com/ValentinKolb/sKV/lib/command"
)

// Apply replays one log entry against the slot of env. The entry's own binlog
// output is discarded. A command that fails with a reply error (e.g. INCR on
// a value that became non-numeric) is reported, the slot is left as the
// command left it.
func Apply(env *command.Env, argv []string) error {
	c, err := command.Parse(argv)
	if err != nil {
		return fmt.Errorf("parse entry %q: %w", argv, err)
	}
	if !c.IsWrite() {
		return fmt.Errorf("entry %q is not a write command", c.Name())
	}
	if err := command.Execute(c, env); err != nil {
		return fmt.Errorf("apply entry %q: %w", argv, err)
	}
	return nil
}
