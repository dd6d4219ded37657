package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"redbank/bank"
	"redbank/crypto"
	"redbank/rpc/modules"
)

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected one parameter object, got %d", len(req.Params))
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(field, value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

func parseOptionalAddress(field, value string) (*crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	addr, err := parseAddress(field, value)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q is not an integer", field, value)
	}
	return amount, nil
}

func parseOptionalAmount(field, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return parseAmount(field, value)
}

func writeModuleError(w http.ResponseWriter, id interface{}, err *modules.ModuleError) {
	writeError(w, err.HTTPStatus, id, err.Code, err.Message, err.Data)
}

type txResult struct {
	Status string `json:"status"`
}

var okResult = txResult{Status: "ok"}

func (s *Server) handleBankInitAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string           `json:"caller"`
		Denom  string           `json:"denom"`
		Params bank.AssetParams `json:"params"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if modErr := s.bank.InitAsset(caller, params.Denom, params.Params); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankUpdateAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string           `json:"caller"`
		Denom  string           `json:"denom"`
		Update bank.AssetUpdate `json:"update"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if modErr := s.bank.UpdateAsset(caller, params.Denom, params.Update); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller     string `json:"caller"`
		Denom      string `json:"denom"`
		Amount     string `json:"amount"`
		OnBehalfOf string `json:"onBehalfOf,omitempty"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	onBehalfOf, err := parseOptionalAddress("onBehalfOf", params.OnBehalfOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if modErr := s.bank.Deposit(caller, params.Denom, amount, onBehalfOf); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller    string `json:"caller"`
		Denom     string `json:"denom"`
		Amount    string `json:"amount,omitempty"`
		Recipient string `json:"recipient,omitempty"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseOptionalAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parseOptionalAddress("recipient", params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if modErr := s.bank.Withdraw(caller, params.Denom, amount, recipient); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankBorrow(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller    string `json:"caller"`
		Denom     string `json:"denom"`
		Amount    string `json:"amount"`
		Recipient string `json:"recipient,omitempty"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parseOptionalAddress("recipient", params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if modErr := s.bank.Borrow(caller, params.Denom, amount, recipient); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankRepay(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller     string `json:"caller"`
		Denom      string `json:"denom"`
		Amount     string `json:"amount"`
		OnBehalfOf string `json:"onBehalfOf,omitempty"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	onBehalfOf, err := parseOptionalAddress("onBehalfOf", params.OnBehalfOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if modErr := s.bank.Repay(caller, params.Denom, amount, onBehalfOf); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Liquidator      string `json:"liquidator"`
		Borrower        string `json:"borrower"`
		CollateralDenom string `json:"collateralDenom"`
		DebtDenom       string `json:"debtDenom"`
		Amount          string `json:"amount"`
		ReceiveReceipt  bool   `json:"receiveReceipt"`
		Recipient       string `json:"recipient,omitempty"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	liquidator, err := parseAddress("liquidator", params.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parseOptionalAddress("recipient", params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	modErr := s.bank.Liquidate(liquidator, borrower, params.CollateralDenom, params.DebtDenom, amount, params.ReceiveReceipt, recipient)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankUpdateLoanLimit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		User   string `json:"user"`
		Denom  string `json:"denom"`
		Limit  string `json:"limit"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	limit, err := parseAmount("limit", params.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if modErr := s.bank.UpdateUncollateralizedLoanLimit(caller, user, params.Denom, limit); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankUpdateCollateralStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Denom  string `json:"denom"`
		Enable bool   `json:"enable"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if modErr := s.bank.UpdateAssetCollateralStatus(caller, params.Denom, params.Enable); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankSetPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Denom string `json:"denom"`
		Price string `json:"price"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	price, err := bank.DecFromString(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("invalid price: %v", err), nil)
		return
	}
	if modErr := s.bank.SetPrice(params.Denom, price); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankCreditWallet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Denom   string `json:"denom"`
		Address string `json:"address"`
		Amount  string `json:"amount"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if modErr := s.bank.CreditWallet(params.Denom, addr, amount); modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, okResult)
}

func (s *Server) handleBankGetMarket(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Denom string `json:"denom"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	info, modErr := s.bank.GetMarket(params.Denom)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, info)
}

func (s *Server) handleBankListMarkets(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	infos, modErr := s.bank.ListMarkets()
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, infos)
}

func (s *Server) handleBankGetUserPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	report, modErr := s.bank.GetUserPosition(addr)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, report)
}

func (s *Server) handleBankGetUserDebt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Denom   string `json:"denom"`
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	debt, modErr := s.bank.GetUserDebt(params.Denom, addr)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, debt)
}

func (s *Server) handleBankGetUserCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Denom   string `json:"denom"`
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collateral, modErr := s.bank.GetUserCollateral(params.Denom, addr)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, collateral)
}

func (s *Server) handleBankGetLoanLimit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Denom   string `json:"denom"`
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	limit, modErr := s.bank.GetUncollateralizedLimit(params.Denom, addr)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, map[string]string{"limit": limit.String()})
}

func (s *Server) handleBankGetHealthStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params", err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	health, modErr := s.bank.GetHealthStatus(addr)
	if modErr != nil {
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, health)
}
