package hypervisor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

// datastoreBrowser is the Datastore Browser. It lists files
// under a parsed DatastorePath, transparently translating object-store
// (vSAN) namespace UUIDs where the underlying datastore requires it.
type datastoreBrowser struct {
	finder *find.Finder

	// dsnsMu guards dsns, a write-once-per-key memoization of the
	// namespace-path-to-UUID translation (_dsnsMap).
	dsnsMu sync.Mutex
	dsns   map[string]string
}

func newDatastoreBrowser(finder *find.Finder) *datastoreBrowser {
	return &datastoreBrowser{finder: finder, dsns: make(map[string]string)}
}

type datastoreInfo struct {
	ds      *object.Datastore
	name    string
	browser *object.HostDatastoreBrowser
	objStore bool
}

func (b *datastoreBrowser) lookup(ctx context.Context, name string) (*datastoreInfo, error) {
	ds, err := b.finder.Datastore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find datastore %q: %w", name, err)
	}

	var mds mo.Datastore
	if err := ds.Properties(ctx, ds.Reference(), []string{"summary", "capability"}, &mds); err != nil {
		return nil, fmt.Errorf("fetch datastore %q properties: %w", name, err)
	}

	browser, err := ds.Browser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch datastore %q browser: %w", name, err)
	}

	return &datastoreInfo{
		ds:       ds,
		name:     mds.Summary.Name,
		browser:  browser,
		objStore: !mds.Capability.TopLevelDirectoryCreateSupported,
	}, nil
}

// namespaceUUID translates a namespace-datastore top-level folder to its
// on-disk UUID path via DatastoreNamespaceManager, memoizing the result.
func (b *datastoreBrowser) namespaceUUID(ctx context.Context, dc *object.Datacenter, dsURL, topLevel string) (string, error) {
	key := dsURL + "/" + topLevel

	b.dsnsMu.Lock()
	if uuid, ok := b.dsns[key]; ok {
		b.dsnsMu.Unlock()
		return uuid, nil
	}
	b.dsnsMu.Unlock()

	nsm := object.NewDatastoreNamespaceManager(b.finder.Client())
	uuidPath, err := nsm.ConvertNamespacePathToUuidPath(ctx, dc, dsURL+topLevel)
	if err != nil {
		return "", fmt.Errorf("convert namespace path %s/%s: %w", dsURL, topLevel, err)
	}

	b.dsnsMu.Lock()
	b.dsns[key] = uuidPath
	b.dsnsMu.Unlock()

	return uuidPath, nil
}

// getFiles does the following: classic datastores honor recursive/
// pattern as given; object-store datastores are forced recursive with a
// widened "*<ext>" pattern, and results are rewritten to the caller-
// visible top-level name.
func (b *datastoreBrowser) getFiles(ctx context.Context, dc *object.Datacenter, path string, recursive bool) ([]string, error) {
	dsPath, ok := ParseDatastorePath(path)
	if !ok {
		return nil, &InvalidArgumentError{Reason: fmt.Sprintf("malformed datastore path %q", path)}
	}

	info, err := b.lookup(ctx, dsPath.Datastore)
	if err != nil {
		return nil, err
	}

	searchFolder := dsPath.FolderPath()
	pattern := dsPath.File()
	visibleTop := dsPath.TopLevelFolder()

	usePattern, useRecursive := objectStoreSearchParams(pattern, recursive, info.objStore)
	if !info.objStore {
		return b.search(ctx, info, dsPath.Datastore, searchFolder, usePattern, useRecursive, "", "")
	}

	var mds mo.Datastore
	if err := info.ds.Properties(ctx, info.ds.Reference(), []string{"summary"}, &mds); err != nil {
		return nil, fmt.Errorf("fetch datastore summary: %w", err)
	}

	uuidTop, err := b.namespaceUUID(ctx, dc, mds.Summary.Url, visibleTop)
	if err != nil {
		return nil, err
	}

	rest := strings.TrimPrefix(searchFolder, "/"+visibleTop)
	uuidFolder := strings.TrimSuffix(uuidTop+rest, "/")

	return b.search(ctx, info, dsPath.Datastore, uuidFolder, usePattern, useRecursive, visibleTop, uuidTop)
}

// objectStoreSearchParams computes the search pattern and recursion flag
// getFiles uses: a classic datastore honors the caller's recursive flag
// and an exact filename pattern (defaulting to "*" when none given); an
// object-store (vSAN) datastore is forced recursive with its pattern
// widened to "*<ext>", since namespace-UUID folders don't line up with
// the caller-visible path one level deep.
func objectStoreSearchParams(pattern string, recursive, objStore bool) (usePattern string, useRecursive bool) {
	if !objStore {
		if pattern == "" {
			pattern = "*"
		}
		return pattern, recursive
	}
	ext := ""
	if idx := strings.LastIndex(pattern, "."); idx >= 0 {
		ext = pattern[idx:]
	}
	return "*" + ext, true
}

func (b *datastoreBrowser) search(ctx context.Context, info *datastoreInfo, dsName, folder, pattern string, recursive bool, visibleTop, uuidTop string) ([]string, error) {
	spec := types.HostDatastoreBrowserSearchSpec{
		MatchPattern: []string{pattern},
	}

	searchPath := "[" + dsName + "] " + folder

	var task *object.Task
	var err error
	if recursive {
		task, err = info.browser.SearchDatastoreSubFolders(ctx, searchPath, &spec)
	} else {
		task, err = info.browser.SearchDatastore(ctx, searchPath, &spec)
	}
	if err != nil {
		return nil, fmt.Errorf("search datastore %s: %w", dsName, err)
	}

	result, err := task.WaitForResult(ctx)
	if err != nil {
		return nil, fmt.Errorf("search datastore %s task: %w", dsName, err)
	}

	var out []string
	switch r := result.Result.(type) {
	case types.HostDatastoreBrowserSearchResults:
		out = append(out, formatSearchResult(r, visibleTop, uuidTop)...)
	case types.ArrayOfHostDatastoreBrowserSearchResults:
		for _, res := range r.HostDatastoreBrowserSearchResults {
			out = append(out, formatSearchResult(res, visibleTop, uuidTop)...)
		}
	}
	return out, nil
}

func formatSearchResult(r types.HostDatastoreBrowserSearchResults, visibleTop, uuidTop string) []string {
	folderPath := r.FolderPath
	if uuidTop != "" {
		folderPath = strings.Replace(folderPath, uuidTop, visibleTop, 1)
	}
	var out []string
	for _, f := range r.File {
		out = append(out, folderPath+"/"+f.GetFileInfo().Path)
	}
	return out
}

func (b *datastoreBrowser) folderExists(ctx context.Context, dc *object.Datacenter, path string) (bool, error) {
	files, err := b.getFiles(ctx, dc, strings.TrimSuffix(path, "/")+"/*", false)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

func (b *datastoreBrowser) fileExists(ctx context.Context, dc *object.Datacenter, path string) (bool, error) {
	files, err := b.getFiles(ctx, dc, path, false)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		if strings.HasSuffix(f, "/"+ParseBasename(path)) || f == path {
			return true, nil
		}
	}
	return false, nil
}

// ParseBasename returns the last path segment of a datastore path string.
func ParseBasename(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
