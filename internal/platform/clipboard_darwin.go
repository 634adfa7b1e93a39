//go:build darwin && cgo

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa
#import <Cocoa/Cocoa.h>
#include <stdlib.h>
#include <string.h>

static long ezpaste_change_count(void) {
	return (long)[[NSPasteboard generalPasteboard] changeCount];
}

// ezpaste_types returns the pasteboard type identifiers joined by newlines.
// The caller frees the result.
static char *ezpaste_types(void) {
	@autoreleasepool {
		NSArray *types = [[NSPasteboard generalPasteboard] types];
		if (types == nil || [types count] == 0) {
			return NULL;
		}
		return strdup([[types componentsJoinedByString:@"\n"] UTF8String]);
	}
}

static void *ezpaste_read(const char *type, size_t *len) {
	@autoreleasepool {
		NSData *data = [[NSPasteboard generalPasteboard] dataForType:[NSString stringWithUTF8String:type]];
		if (data == nil || [data length] == 0) {
			*len = 0;
			return NULL;
		}
		*len = [data length];
		void *buf = malloc(*len);
		memcpy(buf, [data bytes], *len);
		return buf;
	}
}

static int ezpaste_clear_and_declare(char **types, int n) {
	@autoreleasepool {
		NSMutableArray *declared = [NSMutableArray arrayWithCapacity:n];
		for (int i = 0; i < n; i++) {
			[declared addObject:[NSString stringWithUTF8String:types[i]]];
		}
		NSPasteboard *pb = [NSPasteboard generalPasteboard];
		[pb clearContents];
		[pb declareTypes:declared owner:nil];
		return 1;
	}
}

static int ezpaste_set_string(const char *type, const char *value) {
	@autoreleasepool {
		BOOL ok = [[NSPasteboard generalPasteboard] setString:[NSString stringWithUTF8String:value]
		                                              forType:[NSString stringWithUTF8String:type]];
		return ok ? 1 : 0;
	}
}

static int ezpaste_set_paths(const char *type, char **paths, int n) {
	@autoreleasepool {
		NSMutableArray *list = [NSMutableArray arrayWithCapacity:n];
		for (int i = 0; i < n; i++) {
			[list addObject:[NSString stringWithUTF8String:paths[i]]];
		}
		BOOL ok = [[NSPasteboard generalPasteboard] setPropertyList:list
		                                                    forType:[NSString stringWithUTF8String:type]];
		return ok ? 1 : 0;
	}
}

static int ezpaste_set_data(const char *type, const void *bytes, size_t len) {
	@autoreleasepool {
		NSData *data = [NSData dataWithBytes:bytes length:len];
		BOOL ok = [[NSPasteboard generalPasteboard] setData:data
		                                            forType:[NSString stringWithUTF8String:type]];
		return ok ? 1 : 0;
	}
}
*/
import "C"

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

// Pasteboard type identifiers.
var darwinTypes = map[types.DataType]string{
	types.TypeText:     "public.utf8-plain-text",
	types.TypeFileURL:  "public.file-url",
	types.TypeFileList: "NSFilenamesPboardType",
	types.TypePNG:      "public.png",
	types.TypeTIFF:     "public.tiff",
	types.TypeBMP:      "com.microsoft.bmp",
}

// DarwinClipboard talks to NSPasteboard directly so that file references and
// bitmaps can be published together and the changeCount read back.
type DarwinClipboard struct {
	mu     sync.Mutex
	byName map[string]types.DataType
	logger *zap.Logger
}

func newNativeClipboard(logger *zap.Logger) (Clipboard, error) {
	c := &DarwinClipboard{
		byName: make(map[string]types.DataType, len(darwinTypes)),
		logger: logger,
	}
	for t, name := range darwinTypes {
		c.byName[name] = t
	}
	return c, nil
}

func (c *DarwinClipboard) Name() string { return "macOS NSPasteboard" }

func (c *DarwinClipboard) Snapshot() (types.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The type list and the count are two calls; retry once if another
	// writer slipped in between so the snapshot is consistent.
	for attempt := 0; attempt < 2; attempt++ {
		before := int64(C.ezpaste_change_count())
		tags := c.readTypes()
		if after := int64(C.ezpaste_change_count()); after == before {
			return types.Snapshot{Token: before, Types: tags}, nil
		}
	}
	return types.Snapshot{}, errors.New("pasteboard changed while reading its types")
}

func (c *DarwinClipboard) readTypes() []types.DataType {
	cstr := C.ezpaste_types()
	if cstr == nil {
		return nil
	}
	defer C.free(unsafe.Pointer(cstr))

	var tags []types.DataType
	for _, name := range strings.Split(C.GoString(cstr), "\n") {
		if t, ok := c.byName[name]; ok {
			tags = append(tags, t)
		}
	}
	return tags
}

func (c *DarwinClipboard) Read(t types.DataType) ([]byte, error) {
	name, ok := darwinTypes[t]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", t, ErrUnsupportedType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ctype := C.CString(name)
	defer C.free(unsafe.Pointer(ctype))

	var n C.size_t
	ptr := C.ezpaste_read(ctype, &n)
	if ptr == nil || n == 0 {
		return nil, fmt.Errorf("read %s: no data on pasteboard", t)
	}
	defer C.free(ptr)
	return C.GoBytes(ptr, C.int(n)), nil
}

func (c *DarwinClipboard) Write(items []types.Item) error {
	if len(items) == 0 {
		return errors.New("write: no items")
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		name, ok := darwinTypes[it.Type]
		if !ok {
			return fmt.Errorf("write %s: %w", it.Type, ErrUnsupportedType)
		}
		names = append(names, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	declared, free := cStringArray(names)
	C.ezpaste_clear_and_declare(declared, C.int(len(names)))
	free()

	for i, it := range items {
		if err := setItem(names[i], it); err != nil {
			c.logger.Warn("Failed to set pasteboard item", zap.String("type", names[i]), zap.Error(err))
			return err
		}
	}
	c.logger.Debug("Wrote pasteboard", zap.Strings("types", names))
	return nil
}

func setItem(name string, it types.Item) error {
	ctype := C.CString(name)
	defer C.free(unsafe.Pointer(ctype))

	var ok C.int
	switch {
	case it.Type == types.TypeText || it.Type == types.TypeFileURL:
		cval := C.CString(string(it.Data))
		ok = C.ezpaste_set_string(ctype, cval)
		C.free(unsafe.Pointer(cval))
	case it.Type == types.TypeFileList:
		var paths []string
		if err := json.Unmarshal(it.Data, &paths); err != nil {
			return fmt.Errorf("invalid file list data: %w", err)
		}
		if len(paths) == 0 {
			return errors.New("empty file list")
		}
		cpaths, free := cStringArray(paths)
		ok = C.ezpaste_set_paths(ctype, cpaths, C.int(len(paths)))
		free()
	default:
		if len(it.Data) == 0 {
			return fmt.Errorf("no data for %s", name)
		}
		buf := C.CBytes(it.Data)
		ok = C.ezpaste_set_data(ctype, buf, C.size_t(len(it.Data)))
		C.free(buf)
	}
	if ok == 0 {
		return fmt.Errorf("pasteboard rejected %s", name)
	}
	return nil
}

func (c *DarwinClipboard) Close() {}

// cStringArray copies ss into a C-allocated char* array.
func cStringArray(ss []string) (**C.char, func()) {
	arr := C.malloc(C.size_t(len(ss)) * C.size_t(unsafe.Sizeof(uintptr(0))))
	view := unsafe.Slice((**C.char)(arr), len(ss))
	for i, s := range ss {
		view[i] = C.CString(s)
	}
	return (**C.char)(arr), func() {
		for _, p := range view {
			C.free(unsafe.Pointer(p))
		}
		C.free(arr)
	}
}
