// Package api provides the Upbit REST client used to discover the instrument universe.
//
// REST endpoint:
//   - https://api.upbit.com/v1
//
// Only public quotation endpoints are used, so requests carry no credentials.
package api
