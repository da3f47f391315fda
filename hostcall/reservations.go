package hostcall

import (
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/types"
)

// BindReservations registers the gas-reservation family: reserve_gas,
// unreserve_gas, system_reserve_gas, reply_deposit.
func BindReservations(t *Table) {
	t.Bind(NameReserveGas, func(ext Externalities, args Args) (any, error) {
		return ext.Reservations().ReserveGas(args[ArgValue].(types.Gas), args[ArgDelay].(types.BlockNumber))
	})
	t.Bind(NameUnreserveGas, func(ext Externalities, args Args) (any, error) {
		return ext.Reservations().UnreserveGas(args[ArgReservation].(ids.ReservationId))
	})
	t.Bind(NameSystemReserveGas, func(ext Externalities, args Args) (any, error) {
		return nil, ext.Reservations().SystemReserveGas(args[ArgValue].(types.Gas))
	})
	t.Bind(NameReplyDeposit, func(ext Externalities, args Args) (any, error) {
		return nil, ext.Reservations().ReplyDeposit(args[ArgMessageId].(ids.MessageId), args[ArgValue].(types.Gas))
	})
}
