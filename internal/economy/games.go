package economy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"microbank/internal/money"
	"microbank/internal/store"
)

const (
	GameGuessNumber = 1
	GameCoinFlip    = 2
	GameLuckyDraw   = 3

	minPayout = 10
	maxPayout = 100
)

type Game struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Guess string `json:"guess,omitempty"`
}

var games = []Game{
	{ID: GameGuessNumber, Name: "guess_number", Guess: "a number from 1 to 10"},
	{ID: GameCoinFlip, Name: "coin_flip", Guess: "heads or tails"},
	{ID: GameLuckyDraw, Name: "lucky_draw"},
}

func Games() []Game {
	return append([]Game(nil), games...)
}

func checkGuess(gameID int, guess string) (string, error) {
	guess = strings.ToLower(strings.TrimSpace(guess))
	switch gameID {
	case GameGuessNumber:
		n, err := strconv.Atoi(guess)
		if err != nil || n < 1 || n > 10 {
			return "", fmt.Errorf("%w: guess must be a number from 1 to 10", ErrValidation)
		}
		guess = strconv.Itoa(n)
	case GameCoinFlip:
		if guess != "heads" && guess != "tails" {
			return "", fmt.Errorf("%w: guess must be heads or tails", ErrValidation)
		}
	case GameLuckyDraw:
	default:
		return "", fmt.Errorf("%w: unknown game %d", ErrValidation, gameID)
	}
	return guess, nil
}

// roll decides whether a checked guess wins and describes the draw.
func (s *Service) roll(gameID int, guess string) (won bool, outcome string) {
	switch gameID {
	case GameGuessNumber:
		drawn := strconv.Itoa(s.intN(10) + 1)
		return drawn == guess, drawn
	case GameCoinFlip:
		side := "heads"
		if s.intN(2) == 1 {
			side = "tails"
		}
		return side == guess, side
	default:
		return true, "win"
	}
}

// Play draws a payout between 10 and 100 units from the central bank, taxes
// it at the event-time rate and credits the rest to the player. A losing
// draw changes nothing.
func (s *Service) Play(ctx context.Context, user string, gameID int, guess string) (GameResult, error) {
	guess, err := checkGuess(gameID, guess)
	if err != nil {
		return GameResult{}, err
	}
	names := []store.Name{store.TaxSeasons, store.Accounts, store.Transactions}
	res := GameResult{GameID: gameID, Game: games[gameID-1].Name}
	err = s.store.Do(ctx, names, func(rw store.ReadWriter) error {
		b, err := loadBook(ctx, rw, s.clock())
		if err != nil {
			return err
		}
		if _, err := b.balance(user); err != nil {
			return err
		}
		bank, err := b.balance(CentralBank)
		if err != nil {
			return err
		}
		if bank.LessThan(money.Units(minPayout)) {
			return fmt.Errorf("%w: bank holds %s", ErrInsufficientBankFunds, bank.StringFixed(2))
		}

		won, outcome := s.roll(gameID, guess)
		res.Won = won
		res.Outcome = outcome
		res.Winning, res.TaxPaid, res.Net = decimal.Zero, decimal.Zero, decimal.Zero
		if !won {
			return nil
		}

		winning := money.Units(int64(s.intN(maxPayout-minPayout+1) + minPayout))
		if bank.LessThan(winning) {
			return fmt.Errorf("%w: bank holds %s, payout is %s", ErrInsufficientBankFunds, bank.StringFixed(2), winning.StringFixed(2))
		}
		seasons, err := store.Get[[]TaxSeason](ctx, rw, store.TaxSeasons)
		if err != nil {
			return err
		}
		tax := money.Percent(winning, effectiveRate(seasons, b.now, s.defaultTaxRate))
		net := winning.Sub(tax)

		if err := b.debit(CentralBank, winning); err != nil {
			return err
		}
		if tax.IsPositive() {
			if err := b.credit(CentralBank, tax); err != nil {
				return err
			}
		}
		if net.IsPositive() {
			if err := b.credit(user, net); err != nil {
				return err
			}
		}
		tx := b.record(Transaction{
			User:        user,
			Amount:      net,
			Type:        TxMinigameWin,
			Description: "Mini-game win: " + res.Game,
			GameID:      gameID,
			Winning:     decPtr(winning),
			TaxPaid:     decPtr(tax),
		})
		res.Winning, res.TaxPaid, res.Net = winning, tax, net
		res.Transaction = &tx
		return b.save(ctx, rw)
	})
	if err != nil {
		return GameResult{}, err
	}
	s.log.Info("mini-game played", "user", user, "game", gameID, "won", res.Won, "winning", res.Winning.String())
	return res, nil
}
