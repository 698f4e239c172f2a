/*Package batchcount counts words across the objects under an S3 prefix by
splitting the work into independent shards run by an array job scheduler.

A run has three phases, coordinated only through objects in the store:

	plan     lists the inputs and writes a manifest; item i of the manifest is shard i
	migrate  counts the words of one manifest item and writes token:count lines
	merge    sums the results of every shard and ranks the most frequent tokens

Shards are stateless and may be retried or run in any order. The shard index
comes from the --index flag or from $AWS_BATCH_JOB_ARRAY_INDEX. When the
binary runs inside AWS Lambda, it serves {"plan", "index"} events instead of
parsing the command line.
*/
package batchcount
