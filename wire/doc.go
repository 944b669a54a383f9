// Package wire defines the frame protocol remote clients drive the kernel
// with: XML documents with a root tag of request or reply, a uuid
// correlation attribute, and one arg child per typed value.
//
// A request names a target path and a signal:
//
//	<request uuid="..." target="//root/c1" signal="increment">
//	  <arg name="delta" type="int" value="5"/>
//	</request>
//
// A reply echoes the correlation id and carries status ok with result
// fields, or status error with a message child:
//
//	<reply uuid="..." target="//root/c1" signal="increment" status="ok">
//	  <arg name="value" type="int" value="10"/>
//	</reply>
//
// List values use type="array" with an elem attribute naming the scalar
// kind and one item child per element.
//
// Over raw TCP each document travels behind a 4-byte big-endian length
// prefix; over WebSocket the message boundary is the frame boundary and the
// prefix is not used. Malformed input of any shape fails ErrProtocolError,
// and oversized frames additionally match ErrFrameTooLarge. The stream is
// unrecoverable after either, so transports drop the connection.
package wire
