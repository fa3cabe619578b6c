// Package mock provides gomock doubles for the fetcher contract.
//
// Regenerate after interface changes with:
//
//	go generate ./internal/fetcher/mock
package mock

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mock -destination=fetcher_mock.go github.com/kiranshivaraju/linkmetrics/pkg/models Fetcher
