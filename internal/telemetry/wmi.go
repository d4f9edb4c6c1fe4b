//go:build windows
// +build windows

package telemetry

import (
	"fmt"
	"runtime"
	"strconv"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// queryCommandLines returns pid -> command line for every process WMI lets
// us see. Entries for protected processes come back null and are omitted.
func queryCommandLines() (map[int]string, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		// S_FALSE: already initialized on this thread.
		if oleErr, ok := err.(*ole.OleError); !ok || oleErr.Code() != 0x00000001 {
			return nil, fmt.Errorf("CoInitializeEx: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return nil, fmt.Errorf("create WbemLocator: %w", err)
	}
	defer unknown.Release()

	wmi, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("query IDispatch: %w", err)
	}
	defer wmi.Release()

	serviceRaw, err := oleutil.CallMethod(wmi, "ConnectServer", nil, `root\cimv2`)
	if err != nil {
		return nil, fmt.Errorf("connect root\\cimv2: %w", err)
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", "SELECT ProcessId, CommandLine FROM Win32_Process")
	if err != nil {
		return nil, fmt.Errorf("ExecQuery: %w", err)
	}
	result := resultRaw.ToIDispatch()
	defer result.Release()

	countVal, err := oleutil.GetProperty(result, "Count")
	if err != nil {
		return nil, fmt.Errorf("get Count: %w", err)
	}
	count := int(countVal.Val)

	out := make(map[int]string, count)
	for i := 0; i < count; i++ {
		itemRaw, err := oleutil.CallMethod(result, "ItemIndex", i)
		if err != nil {
			continue
		}
		item := itemRaw.ToIDispatch()

		pidVal, perr := oleutil.GetProperty(item, "ProcessId")
		cmdVal, cerr := oleutil.GetProperty(item, "CommandLine")
		if perr == nil && cerr == nil && pidVal.Value() != nil && cmdVal.Value() != nil {
			if pid, err := strconv.Atoi(fmt.Sprintf("%v", pidVal.Value())); err == nil {
				out[pid] = fmt.Sprintf("%v", cmdVal.Value())
			}
		}
		item.Release()
	}

	return out, nil
}
