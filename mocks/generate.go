package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/stockpile/pkg/marketdata/provider Provider
