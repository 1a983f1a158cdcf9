package writer

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Filename builds the conventional path of a daily SDB file. The flat
// layout is <dir>/YYYYMMDD.<xchg>.<symbol>.<instr>.sdb; the deep layout is
// <dir>/<xchg>/<symbol>/YYYY/MM/<instr>.YYYYMMDD.sdb. Slashes in the
// instrument segment are replaced with dashes.
func Filename(dir string, deep bool, xchg, symbol, instr string, date time.Time) string {
	instr = strings.ReplaceAll(instr, "/", "-")
	y, m, d := date.UTC().Date()
	if deep {
		return filepath.Join(dir, xchg, symbol,
			fmt.Sprintf("%04d", y), fmt.Sprintf("%02d", int(m)),
			fmt.Sprintf("%s.%04d%02d%02d.sdb", instr, y, int(m), d))
	}
	return filepath.Join(dir,
		fmt.Sprintf("%04d%02d%02d.%s.%s.%s.sdb", y, int(m), d, xchg, symbol, instr))
}
