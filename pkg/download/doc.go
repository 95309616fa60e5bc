/*
Package download fetches remote artifacts and keeps verified copies on disk.

An artifact is trusted only if its bytes match at least one of its
checksums (sha256 or sha512, hex, case-insensitive). Unknown algorithms
never match.

Materialize is cache-first: a file already at the destination is reused
when it verifies and replaced otherwise. Writes go to a temp file that is
synced and renamed over the destination, and a per-path lock keeps
concurrent callers from fetching the same artifact twice.

	fetcher := download.NewFetcher(nil)
	d := download.New(url, download.SHA256(sum))
	if err := fetcher.Materialize(ctx, d, path); err != nil {
		var fetchErr *download.FetchError // network or checksum failure
		...
	}
	cmd := d.Command(path) // java -jar path for .jar, path otherwise
*/
package download
