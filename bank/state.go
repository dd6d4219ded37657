package bank

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"redbank/crypto"
	"redbank/storage"
)

// Key layout. Every record is a JSON document keyed under the bank/ prefix;
// the markets key holds the denom list so markets can be enumerated without
// database iteration support.
const (
	marketKeyPrefix   = "bank/market/"
	debtKeyPrefix     = "bank/debt/"
	limitKeyPrefix    = "bank/limit/"
	positionKeyPrefix = "bank/position/"
	marketListKey     = "bank/markets"
)

// Store persists engine state in a storage.Database.
type Store struct {
	db storage.Database
}

func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

var _ engineState = (*Store)(nil)

func addrKey(addr crypto.Address) string {
	return hex.EncodeToString(addr.Bytes())
}

func (s *Store) getJSON(key string, out any) (bool, error) {
	raw, err := s.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("bank store: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("bank store: encode %s: %w", key, err)
	}
	return s.db.Put([]byte(key), raw)
}

func (s *Store) GetMarket(denom string) (*Market, error) {
	var market Market
	ok, err := s.getJSON(marketKeyPrefix+denom, &market)
	if err != nil || !ok {
		return nil, err
	}
	market.ensureDefaults()
	return &market, nil
}

func (s *Store) PutMarket(market *Market) error {
	if market == nil || market.Denom == "" {
		return fmt.Errorf("bank store: market without denom")
	}
	denoms, err := s.marketDenoms()
	if err != nil {
		return err
	}
	found := false
	for _, d := range denoms {
		if d == market.Denom {
			found = true
			break
		}
	}
	if !found {
		denoms = append(denoms, market.Denom)
		sort.Strings(denoms)
		if err := s.putJSON(marketListKey, denoms); err != nil {
			return err
		}
	}
	return s.putJSON(marketKeyPrefix+market.Denom, market)
}

func (s *Store) marketDenoms() ([]string, error) {
	var denoms []string
	if _, err := s.getJSON(marketListKey, &denoms); err != nil {
		return nil, err
	}
	return denoms, nil
}

func (s *Store) ListMarkets() ([]*Market, error) {
	denoms, err := s.marketDenoms()
	if err != nil {
		return nil, err
	}
	markets := make([]*Market, 0, len(denoms))
	for _, denom := range denoms {
		market, err := s.GetMarket(denom)
		if err != nil {
			return nil, err
		}
		if market != nil {
			markets = append(markets, market)
		}
	}
	return markets, nil
}

func (s *Store) GetDebt(denom string, addr crypto.Address) (*Debt, error) {
	var debt Debt
	ok, err := s.getJSON(debtKeyPrefix+denom+"/"+addrKey(addr), &debt)
	if err != nil || !ok {
		return nil, err
	}
	debt.ensureDefaults()
	return &debt, nil
}

func (s *Store) PutDebt(denom string, addr crypto.Address, debt *Debt) error {
	if debt == nil {
		return fmt.Errorf("bank store: nil debt record")
	}
	debt.ensureDefaults()
	return s.putJSON(debtKeyPrefix+denom+"/"+addrKey(addr), debt)
}

func (s *Store) GetPosition(addr crypto.Address) (*Position, error) {
	position := NewPosition()
	if _, err := s.getJSON(positionKeyPrefix+addrKey(addr), position); err != nil {
		return nil, err
	}
	position.ensureMaps()
	return position, nil
}

func (s *Store) PutPosition(addr crypto.Address, position *Position) error {
	if position == nil {
		return fmt.Errorf("bank store: nil position record")
	}
	return s.putJSON(positionKeyPrefix+addrKey(addr), position)
}

func (s *Store) GetUncollateralizedLimit(denom string, addr crypto.Address) (*big.Int, error) {
	var limit limitRecord
	ok, err := s.getJSON(limitKeyPrefix+denom+"/"+addrKey(addr), &limit)
	if err != nil {
		return nil, err
	}
	if !ok || limit.Limit == nil {
		return big.NewInt(0), nil
	}
	return limit.Limit, nil
}

func (s *Store) PutUncollateralizedLimit(denom string, addr crypto.Address, limit *big.Int) error {
	if limit == nil {
		limit = big.NewInt(0)
	}
	return s.putJSON(limitKeyPrefix+denom+"/"+addrKey(addr), limitRecord{Limit: limit})
}

type limitRecord struct {
	Limit *big.Int `json:"limit"`
}
