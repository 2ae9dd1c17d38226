package engine

import (
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"trade-ledger/internal/types"
)

// lotQueue is a FIFO of execution lots owned by one matching pass. A partially
// consumed lot goes back in the slot it was popped from, ahead of later lots.
type lotQueue struct {
	lots []types.ExecutionRecord
	head int
}

func newLotQueue(lots []types.ExecutionRecord) *lotQueue {
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].TradeTime.Before(lots[j].TradeTime)
	})
	return &lotQueue{lots: lots}
}

func (q *lotQueue) len() int { return len(q.lots) - q.head }

func (q *lotQueue) pop() types.ExecutionRecord {
	lot := q.lots[q.head]
	q.head++
	return lot
}

func (q *lotQueue) pushFront(lot types.ExecutionRecord) {
	if q.head > 0 {
		q.head--
		q.lots[q.head] = lot
		return
	}
	q.lots = append([]types.ExecutionRecord{lot}, q.lots...)
}

func (q *lotQueue) remaining() []types.ExecutionRecord {
	return q.lots[q.head:]
}

// MatchGroup pairs the buys and sells of a single instrument in time order.
// Every input unit ends up either in exactly one MatchedTrade leg or in the
// unmatched residue. A zero-size lot is consumed alone and its counterpart
// stays queued at full size, so no quantity disappears unmatched.
func MatchGroup(records []types.ExecutionRecord) ([]types.MatchedTrade, []types.UnmatchedExecution) {
	var buyLots, sellLots []types.ExecutionRecord
	for _, rec := range records {
		if rec.Side == types.SideBuy {
			buyLots = append(buyLots, rec)
		} else {
			sellLots = append(sellLots, rec)
		}
	}
	buys, sells := newLotQueue(buyLots), newLotQueue(sellLots)

	var matched []types.MatchedTrade
	for buys.len() > 0 && sells.len() > 0 {
		buy, sell := buys.pop(), sells.pop()
		qty := buy.Quantity
		if sell.Quantity.LessThan(qty) {
			qty = sell.Quantity
		}

		if qty.IsPositive() {
			matched = append(matched, pairLots(buy, sell, qty))
		}

		// Zero-size lots are consumed outright; a non-empty counterpart keeps
		// its full quantity at the front of its queue.
		if buy.Quantity.GreaterThan(qty) {
			buys.pushFront(residual(buy, qty))
		}
		if sell.Quantity.GreaterThan(qty) {
			sells.pushFront(residual(sell, qty))
		}
	}

	var unmatched []types.UnmatchedExecution
	for _, q := range []*lotQueue{buys, sells} {
		for _, lot := range q.remaining() {
			unmatched = append(unmatched, types.UnmatchedExecution{ExecutionRecord: lot})
		}
	}
	return matched, unmatched
}

func pairLots(buy, sell types.ExecutionRecord, qty decimal.Decimal) types.MatchedTrade {
	buyCommission := share(buy.Commission, qty, buy.Quantity)
	sellCommission := share(sell.Commission, qty, sell.Quantity)
	commission := buyCommission.Add(sellCommission)

	gross := sell.Price.Sub(buy.Price).Mul(qty).Mul(buy.Multiplier)
	return types.MatchedTrade{
		InstrumentKey:   buy.InstrumentKey,
		SecurityType:    buy.SecurityType,
		Multiplier:      buy.Multiplier,
		MatchedQuantity: qty,
		BuyPrice:        buy.Price,
		SellPrice:       sell.Price,
		BuyTime:         buy.TradeTime,
		SellTime:        sell.TradeTime,
		BuyExecutionID:  buy.ExecutionID,
		SellExecutionID: sell.ExecutionID,
		BuyNetAmount:    share(buy.NetAmount, qty, buy.Quantity),
		SellNetAmount:   share(sell.NetAmount, qty, sell.Quantity),
		TotalCommission: commission,
		GrossPnL:        gross,
		NetPnL:          gross.Sub(commission),
	}
}

// residual is what is left of lot after qty of it was matched. Commission
// and net amount shrink by the consumed share so the two parts add back up
// to the original exactly.
func residual(lot types.ExecutionRecord, qty decimal.Decimal) types.ExecutionRecord {
	rest := lot
	rest.Quantity = lot.Quantity.Sub(qty)
	rest.Commission = lot.Commission.Sub(share(lot.Commission, qty, lot.Quantity))
	rest.NetAmount = lot.NetAmount.Sub(share(lot.NetAmount, qty, lot.Quantity))
	return rest
}

type instrumentGroup struct {
	key     string
	records []types.ExecutionRecord
}

// groupByKey buckets records by instrument key, keeping keys in order of
// first appearance and records in input order.
func groupByKey(records []types.ExecutionRecord) []instrumentGroup {
	index := make(map[string]int)
	var groups []instrumentGroup
	for _, rec := range records {
		i, ok := index[rec.InstrumentKey]
		if !ok {
			i = len(groups)
			index[rec.InstrumentKey] = i
			groups = append(groups, instrumentGroup{key: rec.InstrumentKey})
		}
		groups[i].records = append(groups[i].records, rec)
	}
	return groups
}

type groupResult struct {
	matched   []types.MatchedTrade
	unmatched []types.UnmatchedExecution
}

// matchAll runs MatchGroup for every instrument on at most workers
// goroutines. Results are merged back in group order.
func matchAll(groups []instrumentGroup, workers int) ([]types.MatchedTrade, []types.UnmatchedExecution) {
	results := make([]groupResult, len(groups))

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, grp := range groups {
		i, grp := i, grp
		g.Go(func() error {
			m, u := MatchGroup(grp.records)
			results[i] = groupResult{matched: m, unmatched: u}
			return nil
		})
	}
	_ = g.Wait()

	matched := []types.MatchedTrade{}
	unmatched := []types.UnmatchedExecution{}
	for _, r := range results {
		matched = append(matched, r.matched...)
		unmatched = append(unmatched, r.unmatched...)
	}
	return matched, unmatched
}
