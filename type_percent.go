package immotax

import "fmt"

// Percent is a ratio expressed in percent (5 means 5%).
type Percent float64

func (p Percent) String() string {
	return fmt.Sprintf("%.2f%%", float64(p))
}
