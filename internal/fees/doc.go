// Package fees computes Kalshi trading fees.
//
// The exchange charges round_up(rate × C × P × (1 − P)) per fill, where C is
// the contract count, P the price in dollars and the result is rounded up to
// the next cent. Takers pay rate 0.07 and makers 0.0175. Arithmetic is done in
// decimal so a fee that lands exactly on a cent is not pushed up by float
// error.
package fees
