package main

import "github.com/imrishuroy/go-grocery-checkout/internal/checkout"

// ReconcileMessage is the body the api enqueues after handing a shopper to the gateway.
type ReconcileMessage = checkout.ReconcileRequest
