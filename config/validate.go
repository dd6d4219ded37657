package config

import (
	"fmt"
	"math/big"
	"strings"
)

// validateCloseFactor checks the liquidation close factor is a decimal in
// (0, 1]. Full parsing happens in the bank package; here we only gate obvious
// misconfiguration before the node boots.
func validateCloseFactor(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("CloseFactor must be set")
	}
	value, ok := new(big.Float).SetString(s)
	if !ok {
		return fmt.Errorf("CloseFactor %q is not a decimal", s)
	}
	if value.Sign() <= 0 || value.Cmp(big.NewFloat(1)) > 0 {
		return fmt.Errorf("CloseFactor %q must be in (0, 1]", s)
	}
	return nil
}
