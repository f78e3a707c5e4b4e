package contract

// auctionABIJSON is the auction contract surface the frame uses. getRenderData
// bundles every display read plus the token metadata URI into one call;
// clients prefer it and fall back to the individual views when a node or an
// older deployment doesn't serve it.
const auctionABIJSON = `[
  {"name": "placeBid", "type": "function", "stateMutability": "payable",
   "inputs": [{"name": "fid", "type": "uint64"}], "outputs": []},
  {"name": "getAuctionInfo", "type": "function", "stateMutability": "view",
   "inputs": [],
   "outputs": [{"name": "highestBidder_", "type": "address"},
               {"name": "highestBid_", "type": "uint256"},
               {"name": "timeLeft_", "type": "uint256"}]},
  {"name": "getBidderStats", "type": "function", "stateMutability": "view",
   "inputs": [{"name": "addr", "type": "address"}],
   "outputs": [{"name": "count", "type": "uint256"},
               {"name": "fid", "type": "uint64"}]},
  {"name": "firstBidder", "type": "function", "stateMutability": "view",
   "inputs": [], "outputs": [{"name": "", "type": "address"}]},
  {"name": "firstBidderFID", "type": "function", "stateMutability": "view",
   "inputs": [], "outputs": [{"name": "", "type": "uint64"}]},
  {"name": "endTime", "type": "function", "stateMutability": "view",
   "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "tokenURI", "type": "function", "stateMutability": "view",
   "inputs": [{"name": "tokenId", "type": "uint256"}],
   "outputs": [{"name": "", "type": "string"}]},
  {"name": "reservePrice", "type": "function", "stateMutability": "view",
   "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "minIncrementBps", "type": "function", "stateMutability": "view",
   "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "hasFirstBid", "type": "function", "stateMutability": "view",
   "inputs": [], "outputs": [{"name": "", "type": "bool"}]},
  {"name": "totalBids", "type": "function", "stateMutability": "view",
   "inputs": [], "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "getRenderData", "type": "function", "stateMutability": "view",
   "inputs": [{"name": "tokenId", "type": "uint256"}],
   "outputs": [{"name": "reservePrice_", "type": "uint256"},
               {"name": "minIncrementBps_", "type": "uint256"},
               {"name": "highestBidder_", "type": "address"},
               {"name": "highestBid_", "type": "uint256"},
               {"name": "hasFirstBid_", "type": "bool"},
               {"name": "firstBidderFID_", "type": "uint64"},
               {"name": "totalBids_", "type": "uint256"},
               {"name": "endTime_", "type": "uint256"},
               {"name": "tokenURI_", "type": "string"}]}
]`
