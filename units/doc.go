// Package units holds the five steps of the purchase order pipeline and the
// domain types they exchange through the shared store.
//
//	reader      purchase orders CSV        -> customer_orders
//	validator   customer_orders + prices   -> validation_results
//	responder   validation_results         -> exception_notices (mock email)
//	creator     validation_results         -> sales_orders
//	summarizer  everything above           -> summary.json
//
// Each unit is configured through exported fields, checked in Init, and
// reports progress on the StatusLine it is given. A failing unit returns its
// error in the Outcome and publishes nothing.
package units
