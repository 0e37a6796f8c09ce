// Package connection implements the upstream exchange connectors.
//
// An exchange connector:
//   - Fetches the instrument universe over REST, falling back to the
//     stored catalog and then a fixed symbol list
//   - Holds one WebSocket connection to the exchange ticker feed
//   - Sends a single subscribe frame once the socket is open
//   - Hands every inbound frame to a MessageHandler (the router)
//   - Schedules one reconnect attempt after a fixed delay when the socket closes
//   - Reports connection state and feed health
package connection
