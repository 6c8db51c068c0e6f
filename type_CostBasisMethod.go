package immotax

import (
	"encoding/json"
	"fmt"
)

// CostBasisMethod defines the method for calculating cost basis.
type CostBasisMethod int

const (
	// FIFO (First-In, First-Out) calculates the cost basis by assuming the first units purchased are the first ones sold.
	// It is the method the german tax office applies to private sales.
	FIFO CostBasisMethod = iota
	// AverageCost calculates the cost basis by averaging the cost of all units.
	AverageCost
)

func (m CostBasisMethod) String() string {
	switch m {
	case AverageCost:
		return "average"
	case FIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// ParseCostBasisMethod parses a string into a CostBasisMethod.
func ParseCostBasisMethod(s string) (CostBasisMethod, error) {
	switch s {
	case "average":
		return AverageCost, nil
	case "fifo", "":
		return FIFO, nil
	default:
		return 0, fmt.Errorf("unknown cost basis method: %q", s)
	}
}

func (m CostBasisMethod) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *CostBasisMethod) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseCostBasisMethod(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
