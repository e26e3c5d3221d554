// Package protocol implements the text datagram grammar spoken between the
// bridge and its client.
//
// Every request is one ASCII datagram of space-separated tokens; trailing
// CR/LF is ignored. The first token selects the command:
//
//	shake                      handshake           -> shake <count>
//	g <index> 1                start capture       -> g
//	g <index> 0 [<a>|<b>|...]  stop capture, match -> g <gesture>
//	u <index>                  query input state   -> 18 fields
//	r <index> <1|0>            rumble on/off       -> r
//	e                          disconnect          -> request echoed verbatim
//
// Device indexes on the wire are 1-based. Failures are reported as
// "error <code> <detail>"; malformed or unknown requests get no reply.
package protocol
