package httpapi

import (
	"time"

	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/service/account"
	"github.com/tinoosan/finman/internal/service/stats"
	"github.com/tinoosan/finman/internal/service/transaction"
	"github.com/tinoosan/finman/internal/service/user"
)

// dateLayout is the wire format of transaction dates.
const dateLayout = "2006-01-02"

// Requests

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type postAccountRequest struct {
	AccountName string  `json:"account_name"`
	Amount      float64 `json:"amount"`
	UserID      int64   `json:"user_id"`
}

// putAccountRequest uses pointers so that omitted fields stay unchanged.
type putAccountRequest struct {
	AccountName *string  `json:"account_name"`
	Amount      *float64 `json:"amount"`
	UserID      *int64   `json:"user_id"`
}

// transactionRequest is shared by POST and PUT. user_id 0 or omitted means the caller
// (POST) or the current owner (PUT). An omitted category means auto and an omitted date
// means today (POST) or unchanged (PUT).
type transactionRequest struct {
	Amount    float64 `json:"amount"`
	Category  string  `json:"category"`
	UserID    int64   `json:"user_id"`
	AccountID int64   `json:"account_id"`
	Date      *string `json:"date"`
}

type monthQuery struct {
	Month int
	Year  int
}

// Responses

type userResponse struct {
	ID      int64  `json:"id"`
	Login   string `json:"login"`
	IsAdmin bool   `json:"is_admin"`
}

type tokenResponse struct {
	UserID      int64  `json:"user_id"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type accountResponse struct {
	ID          int64        `json:"id"`
	AccountName string       `json:"account_name"`
	Amount      float64      `json:"amount"`
	UserID      int64        `json:"user_id"`
	User        userResponse `json:"user"`
}

type transactionResponse struct {
	ID        int64           `json:"id"`
	Amount    float64         `json:"amount"`
	Category  ledger.Category `json:"category"`
	UserID    int64           `json:"user_id"`
	AccountID int64           `json:"account_id"`
	Date      string          `json:"date"`
	User      userResponse    `json:"user"`
	Account   accountResponse `json:"account"`
}

type balancesResponse struct {
	UserID                 int64   `json:"user_id"`
	UserName               string  `json:"user_name"`
	TotalAmount            float64 `json:"total_amount"`
	AccountCount           int     `json:"account_count"`
	TransactionsTotal      float64 `json:"transactions_total"`
	TransactionCount       int     `json:"transaction_count"`
	FirstDate              *string `json:"first_date"`
	LastDate               *string `json:"last_date"`
	AvgTransactionPerDay   float64 `json:"avg_transaction_per_day"`
	AvgTransactionPerMonth float64 `json:"avg_transaction_per_month"`
}

type categorySpendingResponse struct {
	Category  ledger.Category `json:"category"`
	CatAmount float64         `json:"cat_amount"`
}

func toUserResponse(u ledger.User) userResponse {
	return userResponse{ID: u.ID, Login: u.Login, IsAdmin: u.IsAdmin}
}

func toTokenResponse(t user.Token) tokenResponse {
	return tokenResponse{UserID: t.UserID, AccessToken: t.AccessToken, TokenType: t.TokenType}
}

func toAccountResponse(a ledger.Account, owner ledger.User) accountResponse {
	return accountResponse{
		ID:          a.ID,
		AccountName: a.Name,
		Amount:      ledger.Float(a.Amount),
		UserID:      a.UserID,
		User:        toUserResponse(owner),
	}
}

func toAccountView(v account.View) accountResponse { return toAccountResponse(v.Account, v.Owner) }

func toTransactionResponse(v transaction.View) transactionResponse {
	return transactionResponse{
		ID:        v.ID,
		Amount:    ledger.Float(v.Amount),
		Category:  v.Category,
		UserID:    v.UserID,
		AccountID: v.AccountID,
		Date:      v.Date.Format(dateLayout),
		User:      toUserResponse(v.Owner),
		Account:   toAccountResponse(v.Account, v.Owner),
	}
}

func toBalancesResponse(b stats.Balances) balancesResponse {
	return balancesResponse{
		UserID:                 b.UserID,
		UserName:               b.UserName,
		TotalAmount:            ledger.Float(b.TotalAmount),
		AccountCount:           b.AccountCount,
		TransactionsTotal:      ledger.Float(b.TransactionsTotal),
		TransactionCount:       b.TransactionCount,
		FirstDate:              formatDate(b.FirstDate),
		LastDate:               formatDate(b.LastDate),
		AvgTransactionPerDay:   b.AvgPerDay,
		AvgTransactionPerMonth: b.AvgPerMonth,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
