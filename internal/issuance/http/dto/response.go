package dto

import (
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// IssueResponse carries freshly minted tokens.
type IssueResponse struct {
	Tokens []tokenDomain.Token `json:"tokens"`
	Total  string              `json:"total"`
}

// MapTokensToIssueResponse converts minted tokens to the API response.
func MapTokensToIssueResponse(tokens []tokenDomain.Token) IssueResponse {
	return IssueResponse{
		Tokens: tokens,
		Total:  tokenDomain.FormatAmount(tokenDomain.SumAmounts(tokens)),
	}
}
