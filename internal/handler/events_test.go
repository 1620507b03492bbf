package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/trip-seat-reservation/internal/lockstore"
	"github.com/iliyamo/trip-seat-reservation/internal/queue"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
)

func TestBlocksFromItems(t *testing.T) {
	items := []repository.DraftItemView{
		{TripID: 7, LegRole: "OUT", SeatID: 1, SeatLabel: "A1", UnitPriceCents: 2500},
		{TripID: 7, LegRole: "OUT", SeatID: 3, SeatLabel: "A3", UnitPriceCents: 2500},
		{TripID: 9, LegRole: "RETURN", SeatID: 5, SeatLabel: "B1", UnitPriceCents: 3000},
	}
	blocks := blocksFromItems(items)
	assert.Equal(t, []queue.SeatBlock{
		{TripID: 7, LegRole: "OUT", SeatIDs: []uint64{1, 3}, SeatLabels: []string{"A1", "A3"}},
		{TripID: 9, LegRole: "RETURN", SeatIDs: []uint64{5}, SeatLabels: []string{"B1"}},
	}, blocks)
}

func TestBlocksFromItemsEmpty(t *testing.T) {
	assert.Nil(t, blocksFromItems(nil))
}

func TestBookedBlocksCarryLabelsAndRoles(t *testing.T) {
	items := []repository.DraftItemView{
		{TripID: 7, LegRole: "OUT", SeatID: 1, SeatLabel: "A1", UnitPriceCents: 2500},
		{TripID: 7, LegRole: "OUT", SeatID: 3, SeatLabel: "A3", UnitPriceCents: 2500},
		{TripID: 9, LegRole: "RETURN", SeatID: 5, SeatLabel: "B1", UnitPriceCents: 3000},
	}
	// Seat 7:3 was skipped by the release (foreign lock); it must not be
	// announced as booked.
	released := map[uint64][]uint64{7: {1}, 9: {5}}

	blocks := bookedBlocks(items, released)
	assert.Equal(t, []queue.SeatBlock{
		{TripID: 7, LegRole: "OUT", SeatIDs: []uint64{1}, SeatLabels: []string{"A1"}},
		{TripID: 9, LegRole: "RETURN", SeatIDs: []uint64{5}, SeatLabels: []string{"B1"}},
	}, blocks)
}

func TestBookedBlocksWithoutDraft(t *testing.T) {
	// The draft may already have lapsed; released seats are still announced
	// with bare ids.
	blocks := bookedBlocks(nil, map[uint64][]uint64{7: {3, 1}})
	assert.Equal(t, []queue.SeatBlock{
		{TripID: 7, SeatIDs: []uint64{1, 3}},
	}, blocks)
}

func TestBlocksFromRefs(t *testing.T) {
	refs := []lockstore.SeatRef{
		{TripID: 7, SeatID: 1},
		{TripID: 7, SeatID: 3},
		{TripID: 9, SeatID: 5},
	}
	blocks := blocksFromRefs(refs)
	assert.Equal(t, []queue.SeatBlock{
		{TripID: 7, SeatIDs: []uint64{1, 3}},
		{TripID: 9, SeatIDs: []uint64{5}},
	}, blocks)
}
