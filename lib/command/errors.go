package command

import (
	"github.com/ValentinKolb/sKV/lib/storage"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a command error. Msg is the reply text without the protocol prefix.
type Error struct {
	Code Code   // The error class
	Msg  string // The reply text
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Msg
}

func newError(code Code, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type Code uint8

const (
	CodeWrongNumberOfArguments Code = iota + 1 // 1: Argument count violates the arity.
	CodeSyntaxError                            // 2: Unknown or incomplete option.
	CodeInvalidInteger                         // 3: Argument or value is not an integer.
	CodeInvalidFloat                           // 4: Argument or value is not a float.
	CodeIntegerOverflow                        // 5: Increment or decrement would overflow.
	CodeIncrByFloatOverflow                    // 6: Float increment would produce NaN or Infinity.
	CodeInconsistentKeyRouting                 // 7: Range keys do not share a hash tag.
	CodeInvalidDataType                        // 8: Unknown type name.
	CodeOther                                  // 9: Forwarded storage or internal failure.
	CodeUnknownCommand                         // 10: No such command.
)

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

func errWrongArgs(name string) *Error {
	return newError(CodeWrongNumberOfArguments, "ERR wrong number of arguments for '"+name+"' command")
}

func errSyntax() *Error {
	return newError(CodeSyntaxError, "ERR syntax error")
}

func errInvalidInt() *Error {
	return newError(CodeInvalidInteger, "ERR value is not an integer or out of range")
}

func errInvalidFloat() *Error {
	return newError(CodeInvalidFloat, "ERR value is not a valid float")
}

func errOverflow() *Error {
	return newError(CodeIntegerOverflow, "ERR increment or decrement would overflow")
}

func errFloatOverflow() *Error {
	return newError(CodeIncrByFloatOverflow, "ERR increment would produce NaN or Infinity")
}

func errHashtag() *Error {
	return newError(CodeInconsistentKeyRouting, "ERR parameters hashtag is inconsistent")
}

func errInvalidType() *Error {
	return newError(CodeInvalidDataType, "ERR invalid DB type")
}

func errOther(msg string) *Error {
	return newError(CodeOther, "ERR "+msg)
}

// fromStorage maps a storage failure onto the command error taxonomy.
// Numeric classifications are only meaningful for the numeric commands,
// every other command forwards the storage message.
func fromStorage(err error) *Error {
	return errOther(err.Error())
}

func fromStorageNumeric(err error, float bool) *Error {
	switch storage.Code(err) {
	case storage.RetCNotInteger:
		return errInvalidInt()
	case storage.RetCNotFloat:
		return errInvalidFloat()
	case storage.RetCOverflow, storage.RetCInvalidArgument:
		if float {
			return errFloatOverflow()
		}
		return errOverflow()
	default:
		return fromStorage(err)
	}
}
